package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mcl/mclerr"
)

// TrafficSpec describes the simulated broadcast rate and payload size for
// one message type, parsed from a simulation configuration file
// (spec.md §6).
type TrafficSpec struct {
	RateHz    float64
	SizeBytes int
}

// LoadSimulationConfig parses a simulation configuration file: one
// "<MessageName> = <rate_hz>, <size_bytes>" pair per line. Blank lines and
// lines starting with "#" are ignored.
func LoadSimulationConfig(path string) (map[string]TrafficSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mclerr.New(mclerr.ConfigError, "config.LoadSimulationConfig", err)
	}
	defer f.Close()

	specs := make(map[string]TrafficSpec)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, mclerr.New(mclerr.FormatError, "config.LoadSimulationConfig",
				fmt.Errorf("%s:%d: expected '<name> = <rate>, <size>'", path, lineNo))
		}
		name := strings.TrimSpace(parts[0])
		values := strings.SplitN(parts[1], ",", 2)
		if name == "" || len(values) != 2 {
			return nil, mclerr.New(mclerr.FormatError, "config.LoadSimulationConfig",
				fmt.Errorf("%s:%d: expected '<name> = <rate>, <size>'", path, lineNo))
		}

		rate, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
		if err != nil {
			return nil, mclerr.New(mclerr.FormatError, "config.LoadSimulationConfig",
				fmt.Errorf("%s:%d: invalid rate: %w", path, lineNo, err))
		}
		size, err := strconv.Atoi(strings.TrimSpace(values[1]))
		if err != nil {
			return nil, mclerr.New(mclerr.FormatError, "config.LoadSimulationConfig",
				fmt.Errorf("%s:%d: invalid size: %w", path, lineNo, err))
		}

		specs[name] = TrafficSpec{RateHz: rate, SizeBytes: size}
	}
	if err := scanner.Err(); err != nil {
		return nil, mclerr.New(mclerr.IOErrorTransport, "config.LoadSimulationConfig", err)
	}
	return specs, nil
}

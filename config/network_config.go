// Package config parses the two line-oriented configuration file formats
// from spec.md §6: network configuration (one Connection descriptor per
// line) and simulation configuration (per-message traffic rates).
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"mcl/connection"
	"mcl/mclerr"
)

// LoadNetworkConfig parses a network configuration file: a leading
// "Interface = udp" line (the only interface type supported) followed by
// one Connection descriptor string per line. Blank lines and lines
// starting with "#" are ignored.
//
// include/exclude filter connections by their bound message name
// (connection.Message()). A connection with no bound message name is
// matched against the literal "" entry in include/exclude. include, when
// non-empty, is a whitelist; exclude is applied after include. Either may
// be nil to disable filtering.
func LoadNetworkConfig(path string, include, exclude []string) ([]*connection.Connection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mclerr.New(mclerr.ConfigError, "config.LoadNetworkConfig", err)
	}
	defer f.Close()

	includeSet := toSet(include)
	excludeSet := toSet(exclude)

	var sawInterface bool
	var conns []*connection.Connection

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "Interface") && strings.Contains(line, "=") {
			name := strings.ToLower(strings.TrimSpace(strings.SplitN(line, "=", 2)[1]))
			if name != "udp" {
				return nil, mclerr.New(mclerr.ConfigError, "config.LoadNetworkConfig",
					fmt.Errorf("unrecognised interface %q", name))
			}
			sawInterface = true
			continue
		}

		conn, err := connection.FromString(line)
		if err != nil {
			// A malformed connection line is skipped rather than treated as
			// a fatal parse error, matching factory.py's "continue" clause.
			continue
		}

		if excludeSet != nil && excludeSet[conn.Message()] {
			continue
		}
		if includeSet != nil && !includeSet[conn.Message()] {
			continue
		}
		conns = append(conns, conn)
	}
	if err := scanner.Err(); err != nil {
		return nil, mclerr.New(mclerr.IOErrorTransport, "config.LoadNetworkConfig", err)
	}
	if !sawInterface {
		return nil, mclerr.New(mclerr.FormatError, "config.LoadNetworkConfig",
			fmt.Errorf("%q does not declare an Interface line", path))
	}
	return conns, nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

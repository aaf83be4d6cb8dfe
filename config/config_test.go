package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadNetworkConfigParsesConnections(t *testing.T) {
	content := "# network config\n" +
		"Interface = udp\n" +
		"\n" +
		"ff15::1;26000;imu;ImuMessage\n" +
		"ff15::1;26001;gnss;GnssMessage\n"
	path := writeTempFile(t, "network.cfg", content)

	conns, err := LoadNetworkConfig(path, nil, nil)
	if err != nil {
		t.Fatalf("LoadNetworkConfig: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(conns))
	}
	if conns[0].Message() != "ImuMessage" || conns[1].Message() != "GnssMessage" {
		t.Fatalf("unexpected message bindings: %q, %q", conns[0].Message(), conns[1].Message())
	}
}

func TestLoadNetworkConfigRejectsMissingInterface(t *testing.T) {
	path := writeTempFile(t, "network.cfg", "ff15::1;26000;imu;ImuMessage\n")
	if _, err := LoadNetworkConfig(path, nil, nil); err == nil {
		t.Fatalf("expected error for missing Interface line")
	}
}

func TestLoadNetworkConfigAppliesIncludeExclude(t *testing.T) {
	content := "Interface = udp\n" +
		"ff15::1;26000;imu;ImuMessage\n" +
		"ff15::1;26001;gnss;GnssMessage\n" +
		"ff15::1;26002;cam;CameraMessage\n"
	path := writeTempFile(t, "network.cfg", content)

	included, err := LoadNetworkConfig(path, []string{"ImuMessage", "CameraMessage"}, nil)
	if err != nil {
		t.Fatalf("LoadNetworkConfig: %v", err)
	}
	if len(included) != 2 {
		t.Fatalf("expected 2 included connections, got %d", len(included))
	}

	excluded, err := LoadNetworkConfig(path, nil, []string{"GnssMessage"})
	if err != nil {
		t.Fatalf("LoadNetworkConfig: %v", err)
	}
	if len(excluded) != 2 {
		t.Fatalf("expected 2 connections after exclude, got %d", len(excluded))
	}
	for _, c := range excluded {
		if c.Message() == "GnssMessage" {
			t.Fatalf("excluded message still present")
		}
	}
}

func TestLoadSimulationConfigParsesRates(t *testing.T) {
	content := "# simulation config\n" +
		"ImuMessage = 100, 64\n" +
		"GnssMessage = 5.5, 256\n"
	path := writeTempFile(t, "simulation.cfg", content)

	specs, err := LoadSimulationConfig(path)
	if err != nil {
		t.Fatalf("LoadSimulationConfig: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs["ImuMessage"].RateHz != 100 || specs["ImuMessage"].SizeBytes != 64 {
		t.Fatalf("unexpected ImuMessage spec: %+v", specs["ImuMessage"])
	}
	if specs["GnssMessage"].RateHz != 5.5 || specs["GnssMessage"].SizeBytes != 256 {
		t.Fatalf("unexpected GnssMessage spec: %+v", specs["GnssMessage"])
	}
}

func TestLoadSimulationConfigRejectsMalformedLine(t *testing.T) {
	path := writeTempFile(t, "simulation.cfg", "ImuMessage 100, 64\n")
	if _, err := LoadSimulationConfig(path); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/wallbox-bridge/internal/bridgespec"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/config"
	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/logging"
)

// writeTestFiles writes a config.yaml and bridge.conf pair and points
// WALLBOX_BRIDGE_CONFIG at the config.
func writeTestFiles(t *testing.T, specContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	specPath := filepath.Join(tmpDir, "bridge.conf")
	if err := os.WriteFile(specPath, []byte(specContent), 0600); err != nil {
		t.Fatalf("failed to write bridge declaration: %v", err)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
bridge:
  spec_file: "` + specPath + `"
  strict: true
  qos: 0

local:
  broker:
    host: "127.0.0.1"
    port: 19999
    tls: false
  reconnect:
    initial_delay: 1
    max_delay: 5

remote:
  reconnect:
    initial_delay: 1
    max_delay: 5

journal:
  enabled: false

metrics:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("WALLBOX_BRIDGE_CONFIG", configPath)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("WALLBOX_BRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MalformedDeclaration verifies a bad spec file fails fast,
// before any broker connection is attempted.
func TestRun_MalformedDeclaration(t *testing.T) {
	writeTestFiles(t, "connection w\naddress 127.0.0.1:1883\nlocal_clientid c\ntopc openWB/foo in\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail on a misspelled topic directive")
	}
	if !errors.Is(err, bridgespec.ErrConfig) {
		t.Errorf("run() error = %v, want declaration error", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("declaration error took %v, should fail before connecting", elapsed)
	}
}

// TestRun_UnreachableLocalBroker verifies a connection failure at
// startup is fatal rather than retried forever.
func TestRun_UnreachableLocalBroker(t *testing.T) {
	writeTestFiles(t, "connection w\naddress 127.0.0.1:19998\nlocal_clientid c\ntopic openWB/# in\n")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the local broker is unreachable")
	}
	if !strings.Contains(err.Error(), "local side") {
		t.Logf("run() error: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("WALLBOX_BRIDGE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("WALLBOX_BRIDGE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestMergeDeviceRules verifies templated rules reach every connection.
func TestMergeDeviceRules(t *testing.T) {
	spec := &bridgespec.File{
		Bridges: []*bridgespec.Bridge{
			{Name: "a", Rules: []bridgespec.TopicRule{{Filter: "openWB/system/#", Direction: bridgespec.In, QoS: bridgespec.QoSUnset}}},
			{Name: "b"},
		},
	}

	devices := []config.DeviceConfig{
		{Type: "chargepoint", ID: 4},
		{Type: "counter", ID: 0},
	}

	if err := mergeDeviceRules(spec, devices, logging.Default()); err != nil {
		t.Fatalf("mergeDeviceRules() error = %v", err)
	}

	// chargepoint contributes 2 rules, counter 1
	if got := len(spec.Bridges[0].Rules); got != 4 {
		t.Errorf("bridge a has %d rules, want 4", got)
	}
	if got := len(spec.Bridges[1].Rules); got != 3 {
		t.Errorf("bridge b has %d rules, want 3", got)
	}

	if err := mergeDeviceRules(spec, []config.DeviceConfig{{Type: "toaster", ID: 1}}, logging.Default()); err == nil {
		t.Error("expected error for unknown device type")
	}
}

package bridgespec

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const validDeclaration = `# Bridge to the wallbox controller
connection wallbox
address 192.168.1.50:1883
local_clientid house-bridge

topic openWB/chargepoint/4/get/# in
topic openWB/set/chargepoint/4/# out 1
topic openWB/counter/0/get/power in 0
`

func TestParse_ValidDeclaration(t *testing.T) {
	file, err := Parse([]byte(validDeclaration), ParseOptions{Strict: true})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(file.Bridges) != 1 {
		t.Fatalf("expected 1 bridge, got %d", len(file.Bridges))
	}

	br := file.Bridges[0]
	if br.Name != "wallbox" {
		t.Errorf("Name = %q, want wallbox", br.Name)
	}
	if got := br.Address.String(); got != "192.168.1.50:1883" {
		t.Errorf("Address = %q, want 192.168.1.50:1883", got)
	}
	if br.LocalClientID != "house-bridge" {
		t.Errorf("LocalClientID = %q, want house-bridge", br.LocalClientID)
	}

	wantRules := []TopicRule{
		{Filter: "openWB/chargepoint/4/get/#", Direction: In, QoS: QoSUnset},
		{Filter: "openWB/set/chargepoint/4/#", Direction: Out, QoS: 1},
		{Filter: "openWB/counter/0/get/power", Direction: In, QoS: 0},
	}
	if !reflect.DeepEqual(br.Rules, wantRules) {
		t.Errorf("Rules = %+v, want %+v", br.Rules, wantRules)
	}
}

func TestParse_MultipleConnections(t *testing.T) {
	decl := `connection wallbox
address 192.168.1.50:1883
local_clientid bridge-a
topic openWB/chargepoint/4/get/# in

connection cloud
address broker.example.com:8883
local_clientid bridge-b
topic openWB/counter/0/get/# out
`
	file, err := Parse([]byte(decl), ParseOptions{Strict: true})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(file.Bridges) != 2 {
		t.Fatalf("expected 2 bridges, got %d", len(file.Bridges))
	}
	if file.Bridges[1].Name != "cloud" {
		t.Errorf("second bridge name = %q, want cloud", file.Bridges[1].Name)
	}
	if file.Bridges[1].Address.Port != 8883 {
		t.Errorf("second bridge port = %d, want 8883", file.Bridges[1].Address.Port)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		decl     string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "misspelled directive in strict mode",
			decl:     "connection w\naddress h:1883\nlocal_clientid c\ntopc openWB/foo in\n",
			wantLine: 4,
			wantMsg:  "unknown directive",
		},
		{
			name:     "topic before connection",
			decl:     "topic openWB/foo in\n",
			wantLine: 1,
			wantMsg:  "before any connection",
		},
		{
			name:     "address before connection",
			decl:     "address h:1883\n",
			wantLine: 1,
			wantMsg:  "before any connection",
		},
		{
			name:     "connection with no name",
			decl:     "connection\n",
			wantLine: 1,
			wantMsg:  "exactly one name",
		},
		{
			name:     "address missing port",
			decl:     "connection w\naddress justahost\n",
			wantLine: 2,
			wantMsg:  "host:port",
		},
		{
			name:     "address port out of range",
			decl:     "connection w\naddress h:70000\n",
			wantLine: 2,
			wantMsg:  "invalid port",
		},
		{
			name:     "topic missing direction",
			decl:     "connection w\naddress h:1883\nlocal_clientid c\ntopic openWB/foo\n",
			wantLine: 4,
			wantMsg:  "<filter> <in|out>",
		},
		{
			name:     "topic bad direction",
			decl:     "connection w\naddress h:1883\nlocal_clientid c\ntopic openWB/foo both\n",
			wantLine: 4,
			wantMsg:  "direction must be",
		},
		{
			name:     "topic bad qos",
			decl:     "connection w\naddress h:1883\nlocal_clientid c\ntopic openWB/foo in 3\n",
			wantLine: 4,
			wantMsg:  "qos must be 0, 1, or 2",
		},
		{
			name:     "topic bad wildcard",
			decl:     "connection w\naddress h:1883\nlocal_clientid c\ntopic openWB/#/get in\n",
			wantLine: 4,
			wantMsg:  "'#' must be the final level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.decl), ParseOptions{Strict: true})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrConfig) {
				t.Errorf("errors.Is(err, ErrConfig) = false for %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", cfgErr.Line, tt.wantLine)
			}
			if !strings.Contains(cfgErr.Msg, tt.wantMsg) {
				t.Errorf("Msg = %q, want substring %q", cfgErr.Msg, tt.wantMsg)
			}
		})
	}
}

func TestParse_FileLevelErrors(t *testing.T) {
	tests := []struct {
		name    string
		decl    string
		wantMsg string
	}{
		{
			name:    "empty declaration",
			decl:    "# only comments\n\n",
			wantMsg: "no connection declared",
		},
		{
			name:    "connection without address",
			decl:    "connection w\nlocal_clientid c\ntopic openWB/foo in\n",
			wantMsg: "has no address",
		},
		{
			name:    "connection without clientid",
			decl:    "connection w\naddress h:1883\ntopic openWB/foo in\n",
			wantMsg: "has no local_clientid",
		},
		{
			name:    "connection without rules",
			decl:    "connection w\naddress h:1883\nlocal_clientid c\n",
			wantMsg: "declares no topic rules",
		},
		{
			name: "duplicate local_clientid",
			decl: "connection a\naddress h:1883\nlocal_clientid same\ntopic openWB/foo in\n" +
				"connection b\naddress h:1884\nlocal_clientid same\ntopic openWB/bar in\n",
			wantMsg: "declared by both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.decl), ParseOptions{Strict: true})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrConfig) {
				t.Errorf("errors.Is(err, ErrConfig) = false for %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParse_LenientSkipsUnknownDirectives(t *testing.T) {
	decl := `connection w
address h:1883
local_clientid c
bridge_insecure true
topic openWB/foo in
`
	var skipped []int
	file, err := Parse([]byte(decl), ParseOptions{
		Strict: false,
		OnSkip: func(line int, text string) { skipped = append(skipped, line) },
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(skipped) != 1 || skipped[0] != 4 {
		t.Errorf("skipped lines = %v, want [4]", skipped)
	}
	if len(file.Bridges[0].Rules) != 1 {
		t.Errorf("expected the topic rule to survive the skipped line")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	file, err := Parse([]byte(validDeclaration), ParseOptions{Strict: true})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	again, err := Parse([]byte(file.String()), ParseOptions{Strict: true})
	if err != nil {
		t.Fatalf("reparse of String() output failed: %v", err)
	}

	if !reflect.DeepEqual(file, again) {
		t.Errorf("round trip mismatch:\nfirst:  %+v\nsecond: %+v", file, again)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.conf")
	if err := os.WriteFile(path, []byte(validDeclaration), 0o644); err != nil {
		t.Fatalf("writing declaration: %v", err)
	}

	file, err := Load(path, ParseOptions{Strict: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(file.Bridges) != 1 {
		t.Errorf("expected 1 bridge, got %d", len(file.Bridges))
	}

	if _, err := Load(filepath.Join(dir, "missing.conf"), ParseOptions{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBridge_AddRules(t *testing.T) {
	br := &Bridge{
		Rules: []TopicRule{{Filter: "openWB/counter/0/get/#", Direction: In, QoS: 1}},
	}

	br.AddRules([]TopicRule{
		{Filter: "openWB/counter/0/get/#", Direction: In, QoS: QoSUnset}, // duplicate
		{Filter: "openWB/pv/1/get/#", Direction: In, QoS: QoSUnset},
	})

	if len(br.Rules) != 2 {
		t.Fatalf("expected 2 rules after merge, got %d", len(br.Rules))
	}
	if br.Rules[0].QoS != 1 {
		t.Errorf("declared rule's QoS was clobbered by the template merge")
	}
	if br.Rules[1].Filter != "openWB/pv/1/get/#" {
		t.Errorf("new rule not appended, got %+v", br.Rules[1])
	}
}

func TestBridge_RulesFor(t *testing.T) {
	br := &Bridge{
		Rules: []TopicRule{
			{Filter: "a/#", Direction: In},
			{Filter: "b/#", Direction: Out},
			{Filter: "c/#", Direction: In},
		},
	}

	in := br.RulesFor(In)
	if len(in) != 2 || in[0].Filter != "a/#" || in[1].Filter != "c/#" {
		t.Errorf("RulesFor(In) = %+v", in)
	}
	out := br.RulesFor(Out)
	if len(out) != 1 || out[0].Filter != "b/#" {
		t.Errorf("RulesFor(Out) = %+v", out)
	}
}

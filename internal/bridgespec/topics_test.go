package bridgespec

import "testing"

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"openWB/chargepoint/4/get/#", false},
		{"openWB/+/0/get/power", false},
		{"#", false},
		{"+", false},
		{"openWB/counter/0/get/power", false},
		{"", true},
		{"openWB/#/get", true},   // '#' not final
		{"openWB/get#", true},    // '#' not alone
		{"openWB/ch+rge", true},  // '+' not alone
		{"openWB/\x00/get", true}, // NUL
	}

	for _, tt := range tests {
		err := ValidateFilter(tt.filter)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"openWB/counter/0/get/#", "openWB/counter/0/get/power", true},
		{"openWB/counter/0/get/#", "openWB/counter/0/get/power/l1", true},
		{"openWB/counter/0/get/#", "openWB/counter/0/get", true}, // '#' covers the parent level
		{"openWB/counter/0/get/#", "openWB/counter/1/get/power", false},
		{"openWB/+/0/get/power", "openWB/counter/0/get/power", true},
		{"openWB/+/0/get/power", "openWB/counter/0/get/voltage", false},
		{"openWB/+/0/get/power", "openWB/0/get/power", false}, // '+' consumes exactly one level
		{"#", "anything/at/all", true},
		{"openWB/counter/0/get/power", "openWB/counter/0/get/power", true},
		{"openWB/counter/0/get/power", "openWB/counter/0/get", false},
		{"openWB/counter/0/get", "openWB/counter/0/get/power", false},
	}

	for _, tt := range tests {
		if got := Match(tt.filter, tt.topic); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("IN"); err != nil || d != In {
		t.Errorf("ParseDirection(IN) = %v, %v", d, err)
	}
	if d, err := ParseDirection("out"); err != nil || d != Out {
		t.Errorf("ParseDirection(out) = %v, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{"192.168.1.50:1883", Address{Host: "192.168.1.50", Port: 1883}, false},
		{"broker.example.com:8883", Address{Host: "broker.example.com", Port: 8883}, false},
		{"[::1]:1883", Address{Host: "::1", Port: 1883}, false},
		{"noport", Address{}, true},
		{":1883", Address{}, true},
		{"host:0", Address{}, true},
		{"host:notaport", Address{}, true},
	}

	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseAddress(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

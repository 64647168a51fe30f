package bridgespec

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Direction indicates which way a topic rule mirrors messages.
type Direction int

// Relay directions.
const (
	// In relays messages arriving on the remote side to the local side.
	In Direction = iota

	// Out relays messages arriving on the local side to the remote side.
	Out
)

// String returns the directive keyword for the direction.
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection converts a directive keyword to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return In, nil
	case "out":
		return Out, nil
	default:
		return 0, fmt.Errorf("direction must be \"in\" or \"out\", got %q", s)
	}
}

// QoSUnset marks a topic rule that did not declare its own QoS.
// The relay substitutes the bridge-wide default.
const QoSUnset = -1

// TopicRule is one topic filter to mirror across the bridge.
type TopicRule struct {
	// Filter is the topic filter, possibly containing + and # wildcards.
	Filter string

	// Direction selects which side's messages are mirrored to the other.
	Direction Direction

	// QoS is the quality of service for relayed matches, or QoSUnset when
	// the rule did not declare one.
	QoS int
}

// Address is the remote broker endpoint from an address directive.
type Address struct {
	Host string
	Port int
}

// String returns the host:port form used in the declaration file.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseAddress parses a host:port declaration value.
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("address must be host:port, got %q", s)
	}
	if host == "" {
		return Address{}, fmt.Errorf("address %q has empty host", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Address{}, fmt.Errorf("address %q has invalid port", s)
	}
	return Address{Host: host, Port: port}, nil
}

// Bridge is one connection block from the declaration file.
type Bridge struct {
	// Name identifies the connection (the connection directive's argument).
	Name string

	// Address is the remote broker endpoint.
	Address Address

	// LocalClientID is the client id this bridge uses on both brokers.
	// It must be unique among bridges declared in the file.
	LocalClientID string

	// Rules are the topic filters to mirror, in declaration order.
	Rules []TopicRule
}

// File is a parsed bridge declaration file.
type File struct {
	// Bridges holds the connection blocks in declaration order.
	Bridges []*Bridge
}

// String serializes the file back to declaration syntax.
//
// The output parses to a structure equal to the receiver; comments and
// blank lines from the source are not preserved.
func (f *File) String() string {
	var b strings.Builder
	for i, br := range f.Bridges {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "connection %s\n", br.Name)
		fmt.Fprintf(&b, "address %s\n", br.Address)
		fmt.Fprintf(&b, "local_clientid %s\n", br.LocalClientID)
		for _, rule := range br.Rules {
			if rule.QoS == QoSUnset {
				fmt.Fprintf(&b, "topic %s %s\n", rule.Filter, rule.Direction)
			} else {
				fmt.Fprintf(&b, "topic %s %s %d\n", rule.Filter, rule.Direction, rule.QoS)
			}
		}
	}
	return b.String()
}

// RulesFor returns the bridge's rules with the given direction.
func (b *Bridge) RulesFor(d Direction) []TopicRule {
	var rules []TopicRule
	for _, r := range b.Rules {
		if r.Direction == d {
			rules = append(rules, r)
		}
	}
	return rules
}

// AddRules appends rules to the bridge, skipping exact duplicates
// (same filter and direction). Used to merge templated device rules
// into a declared connection.
func (b *Bridge) AddRules(rules []TopicRule) {
	for _, r := range rules {
		if b.hasRule(r.Filter, r.Direction) {
			continue
		}
		b.Rules = append(b.Rules, r)
	}
}

// hasRule reports whether a rule with the filter and direction exists.
func (b *Bridge) hasRule(filter string, d Direction) bool {
	for _, r := range b.Rules {
		if r.Filter == filter && r.Direction == d {
			return true
		}
	}
	return false
}

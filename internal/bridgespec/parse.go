package bridgespec

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Declaration directives.
const (
	directiveConnection    = "connection"
	directiveAddress       = "address"
	directiveLocalClientID = "local_clientid"
	directiveTopic         = "topic"
)

// commentMarker starts a comment line. Only whole-line comments are
// recognized; an inline '#' would be ambiguous with the MQTT multi-level
// wildcard in topic filters.
const commentMarker = "#"

// ParseOptions control how the declaration is parsed.
type ParseOptions struct {
	// Strict makes unknown directives a ConfigError. When false they are
	// skipped, with OnSkip (if set) invoked for each skipped line.
	Strict bool

	// OnSkip is called for every skipped unknown directive when Strict
	// is false. Optional.
	OnSkip func(line int, text string)
}

// Load reads and parses a declaration file.
//
// Parameters:
//   - path: Path to the declaration file
//   - opts: Parse options (strict mode, skip callback)
//
// Returns:
//   - *File: Parsed declaration
//   - error: I/O failure, or a ConfigError describing the first problem
func Load(path string, opts ParseOptions) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bridge declaration: %w", err)
	}
	return Parse(data, opts)
}

// Parse parses declaration text into a File.
//
// Lines are processed in order: blank lines and comments are ignored,
// a connection directive opens a new block, and address/local_clientid/
// topic directives apply to the open block. After parsing, the file is
// validated as a whole (every block complete, client ids unique).
//
// Parameters:
//   - data: Raw declaration text
//   - opts: Parse options (strict mode, skip callback)
//
// Returns:
//   - *File: Parsed declaration
//   - error: A ConfigError describing the first problem found
func Parse(data []byte, opts ParseOptions) (*File, error) {
	file := &File{}
	var current *Bridge

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}

		fields := strings.Fields(line)
		directive := strings.ToLower(fields[0])
		args := fields[1:]

		switch directive {
		case directiveConnection:
			if len(args) != 1 {
				return nil, configErrorf(lineNo, "connection takes exactly one name, got %d arguments", len(args))
			}
			current = &Bridge{Name: args[0]}
			file.Bridges = append(file.Bridges, current)

		case directiveAddress:
			if current == nil {
				return nil, configErrorf(lineNo, "address before any connection directive")
			}
			if len(args) != 1 {
				return nil, configErrorf(lineNo, "address takes exactly one host:port value")
			}
			addr, err := ParseAddress(args[0])
			if err != nil {
				return nil, configErrorf(lineNo, "%v", err)
			}
			current.Address = addr

		case directiveLocalClientID:
			if current == nil {
				return nil, configErrorf(lineNo, "local_clientid before any connection directive")
			}
			if len(args) != 1 {
				return nil, configErrorf(lineNo, "local_clientid takes exactly one value")
			}
			current.LocalClientID = args[0]

		case directiveTopic:
			if current == nil {
				return nil, configErrorf(lineNo, "topic before any connection directive")
			}
			rule, err := parseTopicRule(lineNo, args)
			if err != nil {
				return nil, err
			}
			current.Rules = append(current.Rules, rule)

		default:
			if opts.Strict {
				return nil, configErrorf(lineNo, "unknown directive %q", fields[0])
			}
			if opts.OnSkip != nil {
				opts.OnSkip(lineNo, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading bridge declaration: %w", err)
	}

	if err := file.validate(); err != nil {
		return nil, err
	}

	return file, nil
}

// parseTopicRule parses the arguments of a topic directive.
func parseTopicRule(lineNo int, args []string) (TopicRule, error) {
	if len(args) < 2 || len(args) > 3 {
		return TopicRule{}, configErrorf(lineNo, "topic takes <filter> <in|out> [qos]")
	}

	filter := args[0]
	if err := ValidateFilter(filter); err != nil {
		return TopicRule{}, configErrorf(lineNo, "%v", err)
	}

	direction, err := ParseDirection(args[1])
	if err != nil {
		return TopicRule{}, configErrorf(lineNo, "%v", err)
	}

	qos := QoSUnset
	if len(args) == 3 {
		q, err := strconv.Atoi(args[2])
		if err != nil || q < 0 || q > 2 {
			return TopicRule{}, configErrorf(lineNo, "qos must be 0, 1, or 2, got %q", args[2])
		}
		qos = q
	}

	return TopicRule{Filter: filter, Direction: direction, QoS: qos}, nil
}

// validate checks file-level invariants after all lines are parsed.
func (f *File) validate() error {
	if len(f.Bridges) == 0 {
		return &ConfigError{Msg: "no connection declared"}
	}

	clientIDs := make(map[string]string)
	for _, br := range f.Bridges {
		if br.Address.Host == "" {
			return &ConfigError{Msg: fmt.Sprintf("connection %q has no address", br.Name)}
		}
		if br.LocalClientID == "" {
			return &ConfigError{Msg: fmt.Sprintf("connection %q has no local_clientid", br.Name)}
		}
		if other, dup := clientIDs[br.LocalClientID]; dup {
			return &ConfigError{Msg: fmt.Sprintf(
				"local_clientid %q is declared by both %q and %q", br.LocalClientID, other, br.Name)}
		}
		clientIDs[br.LocalClientID] = br.Name

		if len(br.Rules) == 0 {
			return &ConfigError{Msg: fmt.Sprintf("connection %q declares no topic rules", br.Name)}
		}
	}

	return nil
}

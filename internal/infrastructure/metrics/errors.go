package metrics

import "errors"

// Sentinel errors returned by metrics operations.
var (
	// ErrDisabled indicates metrics are turned off in configuration.
	ErrDisabled = errors.New("metrics: disabled in configuration")

	// ErrConnectionFailed indicates the InfluxDB server could not be reached.
	ErrConnectionFailed = errors.New("metrics: connection failed")

	// ErrNotConnected indicates an operation on a closed client.
	ErrNotConnected = errors.New("metrics: not connected")
)

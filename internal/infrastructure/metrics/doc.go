// Package metrics records relay throughput telemetry in InfluxDB.
//
// Metrics are optional: when disabled in configuration, Connect returns
// ErrDisabled and the relay runs without telemetry. When enabled, each
// relayed message becomes a point in the relay_messages measurement,
// tagged by bridge, direction, and topic, with the payload size as the
// field. Writes are non-blocking and batched; failures surface through
// the SetOnError callback rather than stalling message dispatch.
package metrics

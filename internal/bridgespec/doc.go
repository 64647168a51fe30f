// Package bridgespec parses and serializes the bridge declaration file.
//
// The declaration is line-oriented, one directive per line; lines
// starting with `#` are comments. It carries exactly what a broker
// bridge declaration does: which remote to connect to, which client id
// to use, and which topic filters to mirror in which direction.
//
//	connection wallbox
//	address 192.168.0.50:1883
//	local_clientid openwb-bridge-01
//	topic openWB/counter/0/get/+ in
//	topic openWB/set/chargepoint/4/# out 1
//
// Multiple connection blocks may appear in one file; each needs an
// address, a client id unique across the file, and at least one topic
// rule. Parsing produces a File that serializes back to an equivalent
// declaration (String()), so a parse → serialize → parse round trip
// yields an identical structure.
//
// Topic filters are validated against MQTT filter syntax (`+` alone in
// its level, `#` only as the final level). Match implements the same
// filter matching the brokers use; the relay engine and tests rely on it.
//
// Device templating generates the canonical rule set for an openWB
// device (chargepoint, counter, pv, bat, controller) from its numeric
// id, replacing hand-maintained per-device topic lines.
package bridgespec

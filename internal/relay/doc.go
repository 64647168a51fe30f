// Package relay mirrors MQTT messages between the local broker and one
// remote broker according to a bridge's topic rules.
//
// Each Relay owns one bridge declaration: it subscribes to the rule
// filters on the side messages arrive from and republishes matches
// verbatim on the other side, preserving topic, payload, and retained
// flag. Rules without their own QoS use the bridge-wide default.
//
// When a filter pair overlaps (the same topic mirrored both in and
// out), republishing would echo the message straight back. The relay
// records an origin marker before every publish and silently drops the
// matching message when it arrives back on the side it was published
// to, so a reading never ping-pongs between brokers.
package relay

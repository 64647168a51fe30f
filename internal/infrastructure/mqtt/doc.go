// Package mqtt provides MQTT client connectivity for the wallbox bridge.
//
// This package manages:
//   - Connections to the local and remote Mosquitto brokers with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge is a client of two brokers at once. Each side gets its own
// Client with independent reconnect state; nothing is shared between the
// two connections except the relay engine that drives them.
//
//	Local Broker ↔ wallbox-bridge ↔ Wallbox Controller Broker
//
// # Failure semantics
//
//   - Initial connection failure (DNS, TCP, auth rejection) is returned to
//     the caller and treated as fatal at startup.
//   - Connection drops after a successful start are retried by paho with
//     exponential backoff capped at the endpoint's reconnect.max_delay.
//   - Subscriptions are restored automatically after reconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Local)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("openWB/counter/0/get/+", 0,
//	    func(topic string, payload []byte, retained bool) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt

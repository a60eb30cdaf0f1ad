// Package mqtt connects the service to the Gray Logic MQTT broker.
//
// Client wraps paho.mqtt.golang with auto-reconnect, subscriptions that are
// replayed after every reconnect, panic-safe handlers and a caller-supplied
// Last Will. Topics follows the flat scheme graylogic/{category}/nuki/{id}
// used for state, commands, acks, events, requests and health.
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Will{
//	    Topic:   mqtt.Topics{}.BridgeHealth("nuki"),
//	    Payload: offlinePayload,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Use TLS (broker.tls) outside a trusted LAN; payloads are plain JSON.
package mqtt

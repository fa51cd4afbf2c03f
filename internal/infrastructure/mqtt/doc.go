// Package mqtt connects the path daemon to the MQTT broker.
//
// The broker carries two kinds of traffic:
//
//	odemis/core/path/{mode,transition}          daemon -> subscribers
//	odemis/{command,ack,state}/actuator/{role}  daemon <-> actuator drivers
//
// The client reconnects automatically and restores its subscriptions.
// A Last Will on odemis/system/status reports an unexpected disconnect.
//
// Thread Safety: Client methods are safe for concurrent use. Handlers run
// on paho goroutines and must not block.
package mqtt

// Package mqtt is the MQTT event source and publisher, built on the Eclipse
// Paho client.
//
// The source connects with a bounded number of attempts, subscribes to one
// topic, and resubscribes whenever Paho re-establishes a lost connection.
// Connection state is exposed through Check and the source metrics.
package mqtt

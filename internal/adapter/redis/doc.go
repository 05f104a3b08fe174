// Package redis is the Redis Pub/Sub event source and publisher.
//
// Mood payloads are published on a single channel, the same one the MQTT
// source uses as its topic name.
package redis

// Package broadcast implements the receiver registry using the actor pattern.
//
// A single goroutine owns the receiver set and processes register, unregister
// and broadcast commands from a channel, so every broadcast sees a consistent
// snapshot without locks. Each receiver has its own writer goroutine and a
// bounded queue; a receiver whose queue is full is evicted instead of stalling
// the broadcast.
package broadcast

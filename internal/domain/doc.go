// Package domain defines the bridge's value types and the contracts between
// its components.
//
// Concept-oriented files (mood.go, decision.go, receiver.go, source.go) hold
// types and interfaces only. Implementations live in debounce, broadcast,
// bridge and the adapters, which keeps the import graph acyclic.
package domain

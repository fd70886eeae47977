// Package commandbroker implements the command/event API core of a
// CQRS-style command broker: commands are durably appended to an ordered
// log, events produced by downstream executors are observed on a second
// log, and callers may wait synchronously for the event that completes
// the command they submitted.
//
// The package defines the wire-shaped data model (Command, Event,
// LogRecord, AppendAck) and the time-ordered id generator. The
// concurrency nucleus lives in the fanout subpackage; the public API
// lives in the commander subpackage; broker and index adapters live in
// logbroker and index.
package commandbroker

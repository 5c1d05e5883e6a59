// Package catalog implements the durable media catalog store.
//
// The store owns one SQLite database holding every discovered media file, its
// processing status, derived fingerprints, enriched metadata, extracted ML
// features, review decisions, training feedback, and an append-only audit log.
// Status changes go through an explicit transition table enforced with a
// compare-and-swap on the stored status, so independent pipeline stages can
// claim work without a central coordinator.
package catalog

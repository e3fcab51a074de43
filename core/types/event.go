package types

// Event represents a typed event emitted during settlement state transitions.
// Events are audit/indexing signals, not part of operation correctness.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

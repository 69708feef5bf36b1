package persona

import "time"

// Document is a persona definition as submitted by the caller. The schema
// is enforced by Validate; beyond the known blocks the object is free-form
// up to the serialized size ceiling.
type Document map[string]any

// MaxDocumentBytes is the serialized size ceiling for a persona document.
const MaxDocumentBytes = 10 * 1024

// Persona is the current persona for an agent together with its integrity
// metadata.
type Persona struct {
	AgentID     string    `json:"agent_id"`
	Version     string    `json:"persona_version"`
	ContentHash string    `json:"persona_hash"`
	Document    Document  `json:"persona"`
	ChangedAt   time.Time `json:"changed_at"`
}

// HistoryEntry is one immutable row of the persona audit log. Entries are
// never mutated or deleted.
type HistoryEntry struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Version     string    `json:"persona_version"`
	ContentHash string    `json:"persona_hash"`
	Document    Document  `json:"persona"`
	ChangedAt   time.Time `json:"changed_at"`
}

// Bundle is a portable persona snapshot. The content hash binds the
// document; Import rejects a bundle whose document no longer matches it.
type Bundle struct {
	AgentID     string    `json:"agent_id"`
	Version     string    `json:"persona_version"`
	ContentHash string    `json:"persona_hash"`
	Document    Document  `json:"persona"`
	ExportedAt  time.Time `json:"exported_at"`
}

// Verification is the result of an integrity check.
type Verification struct {
	Valid       bool   `json:"valid"`
	AgentID     string `json:"agent_id"`
	ContentHash string `json:"persona_hash"`
	Reason      string `json:"reason"`
}

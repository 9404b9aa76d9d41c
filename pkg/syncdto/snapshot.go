package syncdto

import "encoding/json"

const (
	SnapshotTypeSession = "snapshot"
	SnapshotTypeDeleted = "deleted"
)

// Snapshot is one push channel frame. Clients replace their local state
// with Session; frames never carry deltas.
type Snapshot struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Revision  int64           `json:"revision"`
	Session   json.RawMessage `json:"session,omitempty"`
}

package core

// SessionState is the client-side session lifecycle state
type SessionState string

const (
	StateAnonymous     SessionState = "anonymous"
	StateAuthenticated SessionState = "authenticated"
	StateRefreshing    SessionState = "refreshing"
	StateExpired       SessionState = "expired"
)

// SessionEventType identifies a change to the shared token pair
type SessionEventType string

const (
	// SessionEventReplaced is published when a new token pair was written
	SessionEventReplaced SessionEventType = "replaced"

	// SessionEventRemoved is published when the token pair was cleared
	SessionEventRemoved SessionEventType = "removed"
)

// SessionEvent notifies other session managers sharing the same token store
type SessionEvent struct {
	Type   SessionEventType `json:"type"`
	Origin string           `json:"origin"` // Manager instance that performed the write
}

package domain

// Message is a single archived exchange.
type Message struct {
	PK        string
	SK        string
	SessionID string
	Question  string
	Answer    string
	Status    string
	TTL       int64
}

// SessionMeta stores aggregate archive state for a session.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    string
	LastActivity string
	Turns        int
	TTL          int64
}

package domain

// Role tags the speaker of a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a single utterance in a conversation. It is the provider-agnostic
// message shape sent to completion providers and returned to web clients.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RetrievalParams attaches a search index as a grounding data source to a
// completion request.
type RetrievalParams struct {
	Endpoint            string
	IndexName           string
	APIKey              string
	QueryType           string
	EmbeddingDeployment string
	InScope             bool
	TopNDocuments       int
}

// CompletionOptions configures a single completion call.
type CompletionOptions struct {
	Model       string
	Temperature *float64
	Retrieval   *RetrievalParams
}

// Citation is a grounding document referenced by a retrieval-augmented reply.
type Citation struct {
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	FilePath string `json:"filepath,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Completion is the generated reply for a transcript.
type Completion struct {
	Text      string
	Citations []Citation
}

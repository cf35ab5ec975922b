package engine

// Chat roles understood by both backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation builds the usual two-turn exchange: a system instruction
// followed by the user's input.
func Conversation(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// Schema is the JSON object a structured chat reply must match.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes one field of a Schema. Items is set for arrays.
type SchemaProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
}

// SingleField returns an object schema with one required property, the
// shape every collaborator reply takes.
func SingleField(name string, prop SchemaProperty) *Schema {
	return &Schema{
		Type:       "object",
		Properties: map[string]SchemaProperty{name: prop},
		Required:   []string{name},
	}
}

// PullProgress reports download progress for a model pull.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// Percent returns the completed share in [0, 100], or -1 when the total
// size is not known yet.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return min(float64(p.Completed)/float64(p.Total)*100, 100)
}

package worker

import (
	"github.com/duragraph/duragraph/pkg/domain"
)

// Well-known state keys shared between nodes.
const (
	KeyThreadID = "thread_id"
	KeyInput    = "input"
	KeyMessages = "messages"
	KeyResponse = "response"
)

// State is the shared mutable mapping passed from node to node during a
// run. Nodes read and write keys freely; the full state moves to the next
// node.
type State map[string]any

// ThreadID returns the run's thread identifier, falling back to the
// shared default thread when absent.
func (s State) ThreadID() string {
	if v, ok := s[KeyThreadID].(string); ok && v != "" {
		return v
	}
	return "default"
}

// Input returns the run's user input, if any.
func (s State) Input() string {
	v, _ := s[KeyInput].(string)
	return v
}

// Response returns the response a node has produced, if any.
func (s State) Response() string {
	v, _ := s[KeyResponse].(string)
	return v
}

// SetResponse stores a node's response.
func (s State) SetResponse(response string) {
	s[KeyResponse] = response
}

// Messages returns the conversation history held in the state. Both the
// typed form (written by nodes) and the decoded-JSON form (arriving over
// the wire) are handled.
func (s State) Messages() []domain.Message {
	switch v := s[KeyMessages].(type) {
	case []domain.Message:
		return v
	case []any:
		messages := make([]domain.Message, 0, len(v))
		for _, entry := range v {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			messages = append(messages, domain.Message{Role: role, Content: content})
		}
		return messages
	default:
		return nil
	}
}

// SetMessages replaces the conversation history held in the state.
func (s State) SetMessages(messages []domain.Message) {
	s[KeyMessages] = messages
}

// AppendMessage appends one message to the history held in the state.
func (s State) AppendMessage(role, content string) {
	s.SetMessages(append(s.Messages(), domain.Message{Role: role, Content: content}))
}

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	copied := make(State, len(s))
	for k, v := range s {
		copied[k] = v
	}
	return copied
}

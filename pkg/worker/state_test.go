package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duragraph/duragraph/pkg/domain"
)

func TestStateThreadIDDefault(t *testing.T) {
	assert.Equal(t, "default", State{}.ThreadID())
	assert.Equal(t, "t1", State{"thread_id": "t1"}.ThreadID())
}

func TestStateMessagesTyped(t *testing.T) {
	state := State{}
	state.AppendMessage("user", "hi")
	state.AppendMessage("assistant", "hello")

	messages := state.Messages()
	assert.Equal(t, []domain.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}, messages)
}

func TestStateMessagesFromDecodedJSON(t *testing.T) {
	// Messages arriving over the wire decode as []any of maps.
	state := State{
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
			map[string]any{"role": "assistant", "content": "hello"},
		},
	}

	messages := state.Messages()
	assert.Equal(t, []domain.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}, messages)
}

func TestStateClone(t *testing.T) {
	state := State{"input": "hi"}
	copied := state.Clone()
	copied["input"] = "changed"

	assert.Equal(t, "hi", state.Input())
	assert.Equal(t, "changed", copied.Input())
}

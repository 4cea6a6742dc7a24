package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zerotrust-rag/internal/model"
)

func TestReverseMessages(t *testing.T) {
	messages := []model.Message{
		{ID: 4, Content: "a2"},
		{ID: 3, Content: "q2"},
		{ID: 2, Content: "a1"},
		{ID: 1, Content: "q1"},
	}
	reverseMessages(messages)

	assert.Equal(t, uint(1), messages[0].ID)
	assert.Equal(t, "q1", messages[0].Content)
	assert.Equal(t, uint(4), messages[3].ID)
	assert.Equal(t, "a2", messages[3].Content)
}

func TestReverseMessagesOddAndEmpty(t *testing.T) {
	odd := []model.Message{{ID: 3}, {ID: 2}, {ID: 1}}
	reverseMessages(odd)
	assert.Equal(t, uint(1), odd[0].ID)
	assert.Equal(t, uint(3), odd[2].ID)

	reverseMessages(nil)
}

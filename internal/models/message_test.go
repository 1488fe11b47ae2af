package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeSnippet(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "empty body",
			body:     "",
			expected: "",
		},
		{
			name:     "short body unchanged",
			body:     "Hello there",
			expected: "Hello there",
		},
		{
			name:     "whitespace collapsed",
			body:     "Hello\n\n  there\tworld\r\n",
			expected: "Hello there world",
		},
		{
			name:     "long body truncated to the limit",
			body:     strings.Repeat("a", 400),
			expected: strings.Repeat("a", SnippetMaxLen),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeSnippet(tt.body))
		})
	}

	t.Run("truncates on rune boundary", func(t *testing.T) {
		body := strings.Repeat("é", 200)
		snippet := MakeSnippet(body)
		assert.Equal(t, strings.Repeat("é", SnippetMaxLen), snippet)
	})
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "alice@example.com", Address{Email: "alice@example.com"}.String())
	assert.Equal(t, "Alice <alice@example.com>", Address{Name: "Alice", Email: "alice@example.com"}.String())
}

func TestValidState(t *testing.T) {
	for _, state := range []MessageState{StateDraft, StateSent, StateReceived, StateTrashed, StateSpam} {
		assert.True(t, ValidState(state), string(state))
	}
	assert.False(t, ValidState("archived"))
	assert.False(t, ValidState(""))
}

func TestStateForFolder(t *testing.T) {
	assert.Equal(t, StateReceived, StateForFolder(FolderTypeInbox))
	assert.Equal(t, StateSent, StateForFolder(FolderTypeSent))
	assert.Equal(t, StateDraft, StateForFolder(FolderTypeDrafts))
	assert.Equal(t, StateSpam, StateForFolder(FolderTypeSpam))
	assert.Equal(t, StateTrashed, StateForFolder(FolderTypeTrash))
	assert.Equal(t, StateReceived, StateForFolder(FolderTypeCustom))
}

func TestFlagUpdateIsEmpty(t *testing.T) {
	assert.True(t, FlagUpdate{}.IsEmpty())

	yes := true
	assert.False(t, FlagUpdate{IsRead: &yes}.IsEmpty())
	assert.False(t, FlagUpdate{IsStarred: &yes}.IsEmpty())
}

// Package storage provides conversation storage abstraction.
//
// Storage backends hide their implementation behind ConversationStorage,
// so shells can swap between memory and SQLite without API changes.

package storage

import (
	"context"

	"github.com/richinex/bucketeer/llm"
)

// ConversationStorage defines the interface for storing conversation history.
type ConversationStorage interface {
	// Save saves conversation history for a session.
	Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error

	// Load loads conversation history for a session.
	// Returns empty slice (not nil) if session doesn't exist.
	// Returns error only for storage failures, not missing sessions.
	Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)

	// Delete deletes conversation history for a session.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}

package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// Store implements ports.StateStore on the local filesystem, one JSON
// file per conversation. It is meant for single-process deployments and
// local development where state should survive a restart without
// running Redis.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath. An empty path defaults to
// ".parley/conversations".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".parley", "conversations")
	}
	return &Store{BasePath: basePath}
}

// Save persists the conversation state atomically: write to a temp file
// in the same directory, fsync, then rename over the destination.
func (s *Store) Save(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	if err := checkID(conversationID); err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure conversation directory: %w", err)
	}

	destPath := filepath.Join(s.BasePath, conversationID+".json")

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+conversationID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}

	return nil
}

// Load retrieves the conversation state from its JSON file.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	if err := checkID(conversationID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.BasePath, conversationID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}

	return &state, nil
}

// Delete removes the conversation file. Deleting an unknown
// conversation is not an error.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if err := checkID(conversationID); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.BasePath, conversationID+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	return nil
}

// List returns all persisted conversation IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

// checkID rejects IDs that would escape the base directory.
func checkID(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}
	if strings.ContainsAny(conversationID, `/\`) || strings.Contains(conversationID, "..") {
		return fmt.Errorf("conversationID %q contains path separators", conversationID)
	}
	return nil
}

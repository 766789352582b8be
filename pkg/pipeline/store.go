package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidCardID indicates a card identifier that is unsafe to
	// use as a file name.
	ErrInvalidCardID = errors.New("invalid card id")

	// ErrSnapshotCorrupted indicates a state file that exists but does
	// not parse.
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")
)

// cardIDPattern matches identifiers safe for use as file names.
var cardIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateCardID rejects card identifiers that could escape the state
// directory or collide with special file names.
func ValidateCardID(cardID string) error {
	if cardID == "" {
		return fmt.Errorf("%w: card id cannot be empty", ErrInvalidCardID)
	}
	if len(cardID) > 255 {
		return fmt.Errorf("%w: card id too long (max 255 characters)", ErrInvalidCardID)
	}
	if !cardIDPattern.MatchString(cardID) {
		return fmt.Errorf("%w: card id must start with an alphanumeric character and contain only alphanumerics, dots, hyphens, and underscores", ErrInvalidCardID)
	}
	if cardID == "." || cardID == ".." {
		return fmt.Errorf("%w: card id cannot be a special directory name", ErrInvalidCardID)
	}
	if strings.ContainsAny(cardID, "/\\") {
		return fmt.Errorf("%w: card id cannot contain path separators", ErrInvalidCardID)
	}
	if filepath.Clean(cardID) != cardID {
		return fmt.Errorf("%w: card id cannot contain path traversal sequences", ErrInvalidCardID)
	}
	return nil
}

// SnapshotStore persists one JSON snapshot per card under a state
// directory. Writes are atomic: marshal to a temp file, then rename
// over the target.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates the state directory if needed and returns a
// store rooted there.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Path returns the state file path for a card.
func (s *SnapshotStore) Path(cardID string) string {
	return filepath.Join(s.dir, cardID+".json")
}

// Save writes the snapshot for its card, replacing any previous one.
func (s *SnapshotStore) Save(snapshot *Snapshot) error {
	if snapshot == nil {
		return errors.New("snapshot is required")
	}
	if err := ValidateCardID(snapshot.CardID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := s.Path(snapshot.CardID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot for a card. A missing file surfaces as an
// os.IsNotExist error; an unparseable file wraps ErrSnapshotCorrupted.
func (s *SnapshotStore) Load(cardID string) (*Snapshot, error) {
	if err := ValidateCardID(cardID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(cardID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}
	return &snapshot, nil
}

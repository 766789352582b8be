package pipeline_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/pkg/pipeline"
)

func testSnapshot(cardID string) *pipeline.Snapshot {
	end := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	duration := 300.0
	return &pipeline.Snapshot{
		State:        pipeline.StateDegradedHealth,
		Timestamp:    time.Date(2026, 3, 1, 12, 6, 0, 0, time.UTC),
		CardID:       cardID,
		ActiveStage:  "test",
		HealthStatus: pipeline.HealthDegraded,
		CircuitBreakersOpen: []string{
			"deploy",
		},
		ActiveIssues: []string{"test_failure"},
		Stages: map[string]*pipeline.StageStateInfo{
			"build": {
				StageName:       "build",
				State:           pipeline.StageCompleted,
				StartTime:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				EndTime:         &end,
				DurationSeconds: &duration,
			},
			"test": {
				StageName: "test",
				State:     pipeline.StageRunning,
				StartTime: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
				Metadata:  map[string]any{"attempt": float64(2)},
			},
		},
	}
}

func TestSnapshotStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := pipeline.NewSnapshotStore(dir)
	require.NoError(t, err)

	want := testSnapshot("card-42")
	require.NoError(t, store.Save(want))

	got, err := store.Load("card-42")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temp file may survive a successful save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "card-42.json", entries[0].Name())
}

func TestSnapshotStore_SaveReplacesPrevious(t *testing.T) {
	store, err := pipeline.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	first := testSnapshot("card-42")
	require.NoError(t, store.Save(first))

	second := testSnapshot("card-42")
	second.State = pipeline.StateCompleted
	require.NoError(t, store.Save(second))

	got, err := store.Load("card-42")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCompleted, got.State)
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	store, err := pipeline.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("never-saved")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestSnapshotStore_LoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	store, err := pipeline.NewSnapshotStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "card-42.json"), []byte("{not json"), 0600))

	_, err = store.Load("card-42")
	require.ErrorIs(t, err, pipeline.ErrSnapshotCorrupted)
}

func TestSnapshotStore_LoadToleratesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	store, err := pipeline.NewSnapshotStore(dir)
	require.NoError(t, err)

	doc := `{"state":"RUNNING","card_id":"card-42","health_status":"healthy","future_field":true}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card-42.json"), []byte(doc), 0600))

	got, err := store.Load("card-42")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateRunning, got.State)
}

func TestSnapshotStore_SaveRejectsInvalidCardID(t *testing.T) {
	dir := t.TempDir()
	store, err := pipeline.NewSnapshotStore(dir)
	require.NoError(t, err)

	snap := testSnapshot("../escape")
	err = store.Save(snap)
	require.ErrorIs(t, err, pipeline.ErrInvalidCardID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewSnapshotStore_RequiresDir(t *testing.T) {
	_, err := pipeline.NewSnapshotStore("")
	require.Error(t, err)
}

func TestValidateCardID(t *testing.T) {
	tests := []struct {
		name    string
		cardID  string
		wantErr bool
	}{
		{"simple", "card-42", false},
		{"dots and underscores", "team.card_42-a", false},
		{"single character", "a", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 256), true},
		{"leading dot", ".hidden", true},
		{"leading hyphen", "-card", true},
		{"path traversal", "../escape", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"space", "card 42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pipeline.ValidateCardID(tt.cardID)
			if tt.wantErr {
				require.ErrorIs(t, err, pipeline.ErrInvalidCardID)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

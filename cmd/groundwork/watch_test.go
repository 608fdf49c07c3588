package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
)

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		name         string
		setupFile    bool
		setupDir     bool
		setupHidden  bool
		operation    fsnotify.Op
		expectChange bool
		expectedType changeType
	}{
		{
			name:         "create file event",
			setupFile:    true,
			operation:    fsnotify.Create,
			expectChange: true,
			expectedType: changeUpdated,
		},
		{
			name:         "write file event",
			setupFile:    true,
			operation:    fsnotify.Write,
			expectChange: true,
			expectedType: changeUpdated,
		},
		{
			name:         "write and chmod event",
			setupFile:    true,
			operation:    fsnotify.Write | fsnotify.Chmod,
			expectChange: true,
			expectedType: changeUpdated,
		},
		{
			name:         "remove file event",
			operation:    fsnotify.Remove,
			expectChange: true,
			expectedType: changeRemoved,
		},
		{
			name:         "rename file event",
			operation:    fsnotify.Rename,
			expectChange: true,
			expectedType: changeRemoved,
		},
		{
			name:         "write to file already gone",
			operation:    fsnotify.Write,
			expectChange: true,
			expectedType: changeRemoved,
		},
		{
			name:      "chmod only is ignored",
			setupFile: true,
			operation: fsnotify.Chmod,
		},
		{
			name:      "create directory is ignored",
			setupDir:  true,
			operation: fsnotify.Create,
		},
		{
			name:        "hidden file is ignored",
			setupHidden: true,
			operation:   fsnotify.Write,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			var path string
			switch {
			case tt.setupDir:
				path = filepath.Join(dir, "sub")
				require.NoError(t, os.Mkdir(path, 0o755))
			case tt.setupHidden:
				path = filepath.Join(dir, ".swp")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
			case tt.setupFile:
				path = filepath.Join(dir, "notes.md")
				require.NoError(t, os.WriteFile(path, []byte("# notes"), 0o644))
			default:
				path = filepath.Join(dir, "gone.md")
			}

			ch, ok := classifyEvent(fsnotify.Event{Name: path, Op: tt.operation})
			if !tt.expectChange {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.expectedType, ch.Type)
			assert.Equal(t, path, ch.Path)
		})
	}
}

func TestPendingChanges_Settle(t *testing.T) {
	p := newPendingChanges(100 * time.Millisecond)
	start := time.Now()

	p.Put(fileChange{Type: changeUpdated, Path: "a"}, start)
	p.Put(fileChange{Type: changeUpdated, Path: "b"}, start)
	p.Put(fileChange{Type: changeRemoved, Path: "a"}, start.Add(80*time.Millisecond))

	due := p.Due(start.Add(100 * time.Millisecond))
	assert.Equal(t, []fileChange{{Type: changeUpdated, Path: "b"}}, due)

	due = p.Due(start.Add(180 * time.Millisecond))
	assert.Equal(t, []fileChange{{Type: changeRemoved, Path: "a"}}, due)

	assert.Empty(t, p.Due(start.Add(time.Hour)))
}

type fakeKnowledge struct {
	calls   []string
	deleted []core.Scope
	added   []core.Source
	addErr  error
}

func (f *fakeKnowledge) Add(_ context.Context, source core.Source, scope core.Scope, _ ...ingestion.IngestOption) (*ingestion.Result, error) {
	f.calls = append(f.calls, "add")
	f.added = append(f.added, source)
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &ingestion.Result{SourceID: "id"}, nil
}

func (f *fakeKnowledge) Delete(_ context.Context, scope core.Scope) (int, error) {
	f.calls = append(f.calls, "delete")
	f.deleted = append(f.deleted, scope)
	return 2, nil
}

func TestApplyChange(t *testing.T) {
	scope := core.Scope{"user": "1"}

	t.Run("updated file is deleted then added", func(t *testing.T) {
		kb := &fakeKnowledge{}
		res, err := applyChange(context.Background(), kb, scope, fileChange{Type: changeUpdated, Path: "/kb/a.md"})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.Equal(t, []string{"delete", "add"}, kb.calls)
		assert.Equal(t, core.Scope{"user": "1", core.MetaURL: "/kb/a.md"}, kb.deleted[0])
		assert.Equal(t, "/kb/a.md", kb.added[0].Identifier)
		assert.Equal(t, core.Scope{"user": "1"}, scope, "caller scope is not modified")
	})

	t.Run("removed file is only deleted", func(t *testing.T) {
		kb := &fakeKnowledge{}
		res, err := applyChange(context.Background(), kb, scope, fileChange{Type: changeRemoved, Path: "/kb/a.md"})
		require.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, []string{"delete"}, kb.calls)
	})

	t.Run("add failure is reported", func(t *testing.T) {
		kb := &fakeKnowledge{addErr: core.ErrLoad}
		_, err := applyChange(context.Background(), kb, scope, fileChange{Type: changeUpdated, Path: "/kb/a.md"})
		assert.True(t, errors.Is(err, core.ErrLoad))
		assert.ErrorContains(t, err, "/kb/a.md")
	})
}

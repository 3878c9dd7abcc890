package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*HistoryManager, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	historyManager, err := NewHistoryManager(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { historyManager.Close() })
	return historyManager, dbPath
}

func TestNewHistoryManagerWritesSchemaVersion(t *testing.T) {
	_, dbPath := newTestManager(t)

	data, err := os.ReadFile(dbPath + ".schema_version")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}

func TestNewHistoryManagerReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	first, err := NewHistoryManager(dbPath)
	require.NoError(t, err)
	_, err = first.RecordCommand("ls", "/tmp", 0)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewHistoryManager(dbPath)
	require.NoError(t, err)
	defer second.Close()

	entries, err := second.GetRecentEntries("", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ls", entries[0].Command)
}

func TestNewHistoryManagerMigratesOnVersionMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	first, err := NewHistoryManager(dbPath)
	require.NoError(t, err)
	_, err = first.RecordCommand("make build", "/src", 0)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, os.WriteFile(dbPath+".schema_version", []byte("1"), 0644))

	second, err := NewHistoryManager(dbPath)
	require.NoError(t, err)
	defer second.Close()

	data, err := os.ReadFile(dbPath + ".schema_version")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))

	// The outdated table is dropped, not carried over.
	entries, err := second.GetRecentEntries("", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewHistoryManagerMigrationFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	versionPath := dbPath + ".schema_version"
	require.NoError(t, os.Mkdir(versionPath, 0755))

	_, err := NewHistoryManager(dbPath)
	assert.ErrorContains(t, err, "error writing history schema version")

	require.NoError(t, os.Remove(versionPath))
	historyManager, err := NewHistoryManager(dbPath)
	require.NoError(t, err)
	require.NoError(t, historyManager.Close())
}

func TestRecordCommand(t *testing.T) {
	historyManager, _ := newTestManager(t)

	entry, err := historyManager.RecordCommand("make test", "/src", 2)
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.Equal(t, "make test", entry.Command)
	assert.Equal(t, "/src", entry.Directory)
	assert.True(t, entry.ExitCode.Valid)
	assert.Equal(t, int32(2), entry.ExitCode.Int32)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestGetRecentEntries(t *testing.T) {
	historyManager, _ := newTestManager(t)

	for _, c := range []struct{ command, dir string }{
		{"one", "/a"},
		{"two", "/b"},
		{"three", "/a"},
	} {
		_, err := historyManager.RecordCommand(c.command, c.dir, 0)
		require.NoError(t, err)
	}

	entries, err := historyManager.GetRecentEntries("", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Command)
	assert.Equal(t, "three", entries[1].Command)

	entries, err = historyManager.GetRecentEntries("/a", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Command)
	assert.Equal(t, "three", entries[1].Command)
}

func TestGetDistinctCommandsByPrefix(t *testing.T) {
	historyManager, _ := newTestManager(t)

	for _, command := range []string{
		"git status",
		"git commit -m wip",
		"go test ./...",
		"git status",
		"Git status",
		"git push",
		"git status",
	} {
		_, err := historyManager.RecordCommand(command, "/repo", 0)
		require.NoError(t, err)
	}

	t.Run("distinct, newest first", func(t *testing.T) {
		usages, err := historyManager.GetDistinctCommandsByPrefix("git ", 10)
		require.NoError(t, err)

		commands := make([]string, len(usages))
		for i, u := range usages {
			commands[i] = u.Command
		}
		assert.Equal(t, []string{"git status", "git push", "git commit -m wip"}, commands)
		assert.Equal(t, 3, usages[0].Uses)
		assert.Equal(t, 1, usages[1].Uses)
		assert.False(t, usages[0].LastUsed.IsZero())
	})

	t.Run("limit", func(t *testing.T) {
		usages, err := historyManager.GetDistinctCommandsByPrefix("g", 2)
		require.NoError(t, err)
		assert.Len(t, usages, 2)
	})

	t.Run("case sensitive", func(t *testing.T) {
		usages, err := historyManager.GetDistinctCommandsByPrefix("Git", 10)
		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.Equal(t, "Git status", usages[0].Command)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		usages, err := historyManager.GetDistinctCommandsByPrefix("git%", 10)
		require.NoError(t, err)
		assert.Empty(t, usages)
	})

	t.Run("no match", func(t *testing.T) {
		usages, err := historyManager.GetDistinctCommandsByPrefix("docker", 10)
		require.NoError(t, err)
		assert.Empty(t, usages)
	})
}

func TestSearchHistory(t *testing.T) {
	historyManager, _ := newTestManager(t)

	for _, command := range []string{"echo hello", "ls -la", "echo world"} {
		_, err := historyManager.RecordCommand(command, "/", 0)
		require.NoError(t, err)
	}

	entries, err := historyManager.SearchHistory("echo", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "echo world", entries[0].Command)
	assert.Equal(t, "echo hello", entries[1].Command)
}

func TestDeleteAndReset(t *testing.T) {
	historyManager, _ := newTestManager(t)

	entry, err := historyManager.RecordCommand("rm -rf build", "/", 0)
	require.NoError(t, err)
	_, err = historyManager.RecordCommand("ls", "/", 0)
	require.NoError(t, err)

	require.NoError(t, historyManager.DeleteEntry(entry.ID))
	assert.Error(t, historyManager.DeleteEntry(entry.ID))

	entries, err := historyManager.GetRecentEntries("", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, historyManager.ResetHistory())
	entries, err = historyManager.GetRecentEntries("", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

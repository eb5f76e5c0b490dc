package lockfile

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock_WritesRecord(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, ":8080")
	require.NoError(t, err)
	defer lock.Release()

	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())

	holder, err := ReadHolder(lock.Path())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), holder.PID)
	assert.Equal(t, ":8080", holder.Addr)
	assert.WithinDuration(t, time.Now(), holder.Started, time.Minute)
}

func TestAcquireLock_Conflict(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir, ":8080")
	require.NoError(t, err)
	defer first.Release()

	second, err := AcquireLock(dir, ":9090")
	require.Error(t, err)
	assert.Nil(t, second)

	var lockErr *LockError
	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, os.Getpid(), lockErr.Holder.PID)
	assert.Equal(t, ":8080", lockErr.Holder.Addr, "failed attempt must not overwrite the holder record")
	assert.Contains(t, err.Error(), "another SehaCoach server")
	assert.Contains(t, err.Error(), dir)
	assert.Contains(t, err.Error(), "(running)")
}

func TestRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "")
	require.NoError(t, err)
	require.FileExists(t, lock.Path())

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, lock.Path())
	assert.NoError(t, lock.Release(), "second release is a no-op")

	again, err := AcquireLock(dir, "")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireLock_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "nested")

	lock, err := AcquireLock(dir, "")
	require.NoError(t, err)
	defer lock.Release()

	assert.DirExists(t, dir)
}

func TestParseHolder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Holder
	}{
		{"full record", "pid=42\nstarted=2026-03-01T09:00:00Z\naddr=:8080\n", Holder{
			PID: 42, Started: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), Addr: ":8080",
		}},
		{"pid only", "pid=12345\n", Holder{PID: 12345}},
		{"bad pid", "pid=abc\n", Holder{}},
		{"bad time", "pid=7\nstarted=yesterday\n", Holder{PID: 7}},
		{"no equals", "pid12345", Holder{}},
		{"empty", "", Holder{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHolder(bufio.NewScanner(strings.NewReader(tt.content)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHolderString(t *testing.T) {
	assert.Equal(t, "unknown process", Holder{}.String())

	s := Holder{PID: os.Getpid(), Addr: ":8080"}.String()
	assert.Contains(t, s, "(running)")
	assert.Contains(t, s, "serving :8080")
}

func TestIsProcessRunning(t *testing.T) {
	assert.True(t, isProcessRunning(os.Getpid()))
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileSet(t *testing.T) *FileSet {
	t.Helper()

	s, err := NewFileSet(filepath.Join(t.TempDir(), "set.txt"))
	require.NoError(t, err)

	return s
}

func TestFileSetCreatesEmptyFile(t *testing.T) {
	s := newTestFileSet(t)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	members, err := s.Members()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestFileSetAddContains(t *testing.T) {
	s := newTestFileSet(t)

	ok, err := s.Contains("abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add("abc"))
	require.NoError(t, s.Add("abc"))
	require.NoError(t, s.Add("def"))

	ok, err = s.Contains("abc")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "abc\ndef\n", string(data))
}

func TestFileSetRemove(t *testing.T) {
	s := newTestFileSet(t)

	for _, m := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		require.NoError(t, s.Add(m))
	}

	require.NoError(t, s.Remove("2.2.2.2"))
	require.NoError(t, s.Remove("9.9.9.9"))

	ok, err := s.Contains("2.2.2.2")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := s.Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1", "3.3.3.3"}, members)
}

func TestFileSetEmptyMembersAreIgnored(t *testing.T) {
	s := newTestFileSet(t)

	require.NoError(t, s.Add(""))
	require.NoError(t, s.Add("   "))

	ok, err := s.Contains("")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := s.Members()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestFileSetTrimsStoredLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ips.txt")
	require.NoError(t, os.WriteFile(path, []byte(" 10.0.0.1 \r\n\n10.0.0.2\n"), 0o644))

	s, err := NewFileSet(path)
	require.NoError(t, err)

	ok, err := s.Contains("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := s.Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, members)
}

func TestFileSetAddAfterUnterminatedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user-agents.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	s, err := NewFileSet(path)
	require.NoError(t, err)
	require.NoError(t, s.Add("def"))

	members, err := s.Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "def"}, members)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc\ndef\n", string(content))
}

func TestFileSetClearAndDestroy(t *testing.T) {
	s := newTestFileSet(t)
	require.NoError(t, s.Add("abc"))

	require.NoError(t, s.Clear())
	members, err := s.Members()
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, s.Destroy())
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	// a destroyed set reads as empty
	ok, err := s.Contains("abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Destroy())
}

func TestFileSetConcurrentWriters(t *testing.T) {
	s := newTestFileSet(t)
	require.NoError(t, s.Add("keep"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Add(fmt.Sprintf("m%d", i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Remove(fmt.Sprintf("m%d", i-1)))
		}(i)
	}
	wg.Wait()

	ok, err := s.Contains("keep")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := s.Members()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, m := range members {
		assert.False(t, seen[m], "duplicate member %s", m)
		seen[m] = true
		assert.True(t, m == "keep" || strings.HasPrefix(m, "m"), "unexpected member %q", m)
	}
}

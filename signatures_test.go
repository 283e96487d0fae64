package botfilter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signaturesTestTOML = `
[[Prefetch]]
Description = "test-prefetcher"
Useragent = "TestPrefetch/1.0"
Referer = "https://mail.example.com/"
`

const signaturesReloadTOML = signaturesTestTOML + `
[[Prefetch]]
Description = "outlook-proxy"
Useragent = "OutlookProxy/2.0"
EmptyReferer = true
`

func TestSignatureMatches(t *testing.T) {
	gmail := DefaultSignatures[0]
	assert.True(t, gmail.Matches(gmailUserAgent, "http://mail.google.com/"))
	assert.False(t, gmail.Matches(gmailUserAgent, ""))
	assert.False(t, gmail.Matches("Mozilla/5.0", "http://mail.google.com/"))

	apple := DefaultSignatures[1]
	assert.True(t, apple.Matches("Mozilla/5.0", ""))
	assert.False(t, apple.Matches("Mozilla/5.0", "https://example.com/"))
	assert.False(t, apple.Matches("Mozilla/5.0 (Macintosh)", ""))
}

func TestSignaturesDefaults(t *testing.T) {
	s, err := NewSignatures(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSignatures, s.List())
}

func TestSignaturesFromFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "signatures.toml")
	require.NoError(t, os.WriteFile(path, []byte(signaturesTestTOML), 0o644))

	s, err := NewSignatures(ctx, path)
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, len(DefaultSignatures)+1)
	assert.Equal(t, DefaultSignatures, list[:len(DefaultSignatures)])
	assert.True(t, list[2].Matches("TestPrefetch/1.0", "https://mail.example.com/"))

	require.NoError(t, os.WriteFile(path, []byte(signaturesReloadTOML), 0o644))

	assert.Eventually(t, func() bool {
		return len(s.List()) == len(DefaultSignatures)+2
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.List()[3].Matches("OutlookProxy/2.0", ""))
}

func TestSignaturesRejectsMissingUseragent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[Prefetch]]\nDescription = \"broken\"\n"), 0o644))

	_, err := NewSignatures(context.Background(), path)
	assert.Error(t, err)

	_, err = NewSignatures(context.Background(), filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSignaturesInOpenRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.toml")
	require.NoError(t, os.WriteFile(path, []byte(signaturesTestTOML), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewSignatures(ctx, path)
	require.NoError(t, err)

	c := NewClassifier(s, "__verified", "/gh/")
	ev, _, _ := newTestEvidence(t)

	v := c.ClassifyOpen(testRequest(t, "GET", "/gh/o/", "TestPrefetch/1.0", "https://mail.example.com/", "192.0.2.1"), ev)
	assert.Equal(t, "prefetch:test-prefetcher", v.Reason)
}

package aegisvault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/absfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestSession(t *testing.T) (*Session, string) {
	t.Helper()
	s := NewSession(DefaultOptions())
	path := filepath.Join(t.TempDir(), "session.avault")
	require.NoError(t, s.CreateVault(path, pw(testPassword)))
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSessionLifecycle(t *testing.T) {
	s, path := newTestSession(t)
	assert.True(t, s.IsOpen())
	assert.Equal(t, path, s.Path())

	_, err := s.MkdirAll("/docs/2024")
	require.NoError(t, err)
	_, err = s.CreateFile("/docs/2024/plan.txt", []byte("ship it"))
	require.NoError(t, err)

	err = s.OpenVault(path, pw(testPassword))
	assert.True(t, IsStateError(err), "second vault: %v", err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.IsOpen())
	assert.Empty(t, s.Path())

	require.NoError(t, s.OpenVault(path, pw(testPassword)))
	data, err := s.ReadFile("/docs/2024/plan.txt")
	require.NoError(t, err)
	assert.Equal(t, "ship it", string(data))

	info, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, CipherAES, info.Cipher)
}

func TestSessionRequiresOpenVault(t *testing.T) {
	s := NewSession(DefaultOptions())

	calls := map[string]func() error{
		"info":   func() error { _, err := s.Info(); return err },
		"mkdir":  func() error { _, err := s.CreateDirectory("/a"); return err },
		"create": func() error { _, err := s.CreateFile("/a", nil); return err },
		"read":   func() error { _, err := s.ReadFile("/a"); return err },
		"write":  func() error { return s.WriteFile("/a", nil) },
		"delete": func() error { return s.Delete("/a") },
		"move":   func() error { return s.Move("/a", "/b") },
		"list":   func() error { _, err := s.List("/"); return err },
		"exists": func() error { _, err := s.Exists("/"); return err },
		"stat":   func() error { _, err := s.Stat("/"); return err },
		"walk":   func() error { return s.Walk("/", nil) },
		"fs":     func() error { return s.WithFS(func(*FS) error { return nil }) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, IsStateError(err), "got %v", err)
			assert.Contains(t, err.Error(), "no vault is open")
		})
	}
}

func TestSessionOperations(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.CreateDirectory("/music")
	require.NoError(t, err)
	_, err = s.CreateFile("/music/track.txt", []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, s.WriteFile("/music/track.txt", []byte("v2")))

	ok, err := s.Exists("/music/track.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Move("/music/track.txt", "/track.txt"))
	entries, err := s.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "music", entries[0].Name)

	e, err := s.Stat("/track.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Size)

	var seen []string
	require.NoError(t, s.Walk("/", func(path string, _ Entry) error {
		seen = append(seen, path)
		return nil
	}))
	assert.Equal(t, []string{"/", "/music", "/track.txt"}, seen)

	require.NoError(t, s.Delete("/track.txt"))
	ok, err = s.Exists("/track.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionTransferAndFS(t *testing.T) {
	s, _ := newTestSession(t)

	n, err := s.Import(context.Background(), sourceTree(t), "/projects/webapp", "/", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, s.WithFS(func(fsys *FS) error {
		data, err := fsys.ReadFile("/webapp/index.html")
		if err != nil {
			return err
		}
		assert.Equal(t, "<html></html>", string(data))
		return fsys.Rename("/webapp/index.html", "/index.html")
	}))
	ok, err := s.Exists("/index.html")
	require.NoError(t, err)
	assert.True(t, ok)

	dst, err := memfs.NewFS()
	require.NoError(t, err)
	n, err = s.Export(context.Background(), "/index.html", dst, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = dst.Stat("/index.html")
	assert.NoError(t, err)

	assert.Error(t, s.WithFS(nil))
}

func TestSessionChangePassword(t *testing.T) {
	s, path := newTestSession(t)
	_, err := s.CreateFile("/f", []byte("x"))
	require.NoError(t, err)

	before, err := s.Fingerprint(HashSHA256)
	require.NoError(t, err)
	require.NoError(t, s.ChangePassword(pw(testPassword), pw("a brand new passphrase")))
	after, err := s.Fingerprint(HashSHA256)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	_, err = s.Fingerprint(HashBLAKE2b512)
	assert.True(t, IsValidationError(err), "experimental hash without gate: %v", err)

	require.NoError(t, s.Close())
	require.NoError(t, s.OpenVault(path, pw("a brand new passphrase")))
}

func TestSessionAutoLock(t *testing.T) {
	s, _ := newTestSession(t)

	assert.True(t, IsValidationError(s.SetAutoLock(-time.Second, nil)))

	locked := make(chan struct{})
	require.NoError(t, s.SetAutoLock(40*time.Millisecond, func() { close(locked) }))

	select {
	case <-locked:
	case <-time.After(5 * time.Second):
		t.Fatal("vault was not auto-locked")
	}
	assert.False(t, s.IsOpen())
	_, err := s.List("/")
	assert.True(t, IsStateError(err))
}

func TestSessionActivityDefersAutoLock(t *testing.T) {
	s, _ := newTestSession(t)

	var now time.Time
	base := time.Now()
	s.mu.Lock()
	now = base
	s.now = func() time.Time { return now }
	s.mu.Unlock()

	locked := make(chan struct{}, 1)
	require.NoError(t, s.SetAutoLock(time.Minute, func() { locked <- struct{}{} }))

	// the watcher reads now under the session lock
	advance := func(d time.Duration) {
		s.mu.Lock()
		now = now.Add(d)
		s.mu.Unlock()
	}

	advance(50 * time.Second)
	_, err := s.List("/")
	require.NoError(t, err)
	advance(50 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.IsOpen(), "activity resets the idle timer")

	advance(20 * time.Second)
	select {
	case <-locked:
	case <-time.After(5 * time.Second):
		t.Fatal("vault was not auto-locked")
	}
	assert.False(t, s.IsOpen())
}

func TestSessionDisableAutoLock(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.SetAutoLock(20*time.Millisecond, func() { t.Error("auto-lock fired after being disabled") }))
	require.NoError(t, s.SetAutoLock(0, nil))
	time.Sleep(100 * time.Millisecond)
	assert.True(t, s.IsOpen())
}

func TestSessionUnlockThrottle(t *testing.T) {
	s, path := newTestSession(t)
	require.NoError(t, s.Close())

	// one attempt, no refill within the test
	s.unlock = rate.NewLimiter(rate.Every(time.Hour), 1)

	err := s.OpenVault(path, pw("guess"))
	assert.True(t, IsAuthenticationError(err), "got %v", err)

	err = s.OpenVault(path, pw(testPassword))
	require.Error(t, err)
	assert.True(t, IsStateError(err), "got %v", err)
	assert.True(t, strings.Contains(err.Error(), ErrTooManyAttempts.Error()))
	assert.False(t, s.IsOpen())
}

func TestSessionCreateRejectedLeavesNoFile(t *testing.T) {
	s := NewSession(DefaultOptions())
	path := filepath.Join(t.TempDir(), "v")

	err := s.CreateVault(path, nil)
	assert.True(t, IsValidationError(err))
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
	assert.False(t, s.IsOpen())
}

func TestSessionSelfTestOnStartup(t *testing.T) {
	opts := DefaultOptions()
	opts.Experimental = Experimental{Enabled: true, SelfTestOnStartup: true}
	s := NewSession(opts)
	path := filepath.Join(t.TempDir(), "v")
	require.NoError(t, s.CreateVault(path, pw(testPassword)))
	require.NoError(t, s.Close())
}

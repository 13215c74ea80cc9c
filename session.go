package aegisvault

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/absfs/absfs"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Failed unlocks are throttled: a burst of unlockBurst, then one more per
// unlockRefill.
const (
	unlockBurst  = 5
	unlockRefill = 2 * time.Second
)

// Session owns at most one open vault and serializes every operation on it,
// including the auto-lock close, behind a single mutex.
//
// Every call refreshes the last-activity time. With auto-lock configured, a
// background watcher closes the vault once it has been idle for the timeout
// and then invokes the lock callback.
type Session struct {
	mu   sync.Mutex
	opts Options
	reg  *Registry
	log  zerolog.Logger
	now  func() time.Time

	// tokens are spent only by failed unlock attempts
	unlock *rate.Limiter

	container    *Container
	vfs          *VFS
	lastActivity time.Time

	autoLock time.Duration
	onLock   func()
	stop     chan struct{} // closed to stop the running watcher
}

// NewSession returns a session with no vault open
func NewSession(opts Options) *Session {
	return &Session{
		opts: opts,
		reg:  NewRegistry(opts.Experimental),
		log:  opts.Logger,
		now:  time.Now,

		unlock: rate.NewLimiter(rate.Every(unlockRefill), unlockBurst),
	}
}

// Registry returns the algorithm registry the session was configured with
func (s *Session) Registry() *Registry {
	return s.reg
}

// CreateVault creates a new container at path and opens it. The password
// slice is wiped before returning.
func (s *Session) CreateVault(path string, password []byte) error {
	defer wipe(password)
	return s.start("create", path, func(c *Container) error {
		return c.Create(password)
	}, true)
}

// OpenVault unlocks the container at path. The password slice is wiped
// before returning.
func (s *Session) OpenVault(path string, password []byte) error {
	defer wipe(password)
	return s.start("open", path, func(c *Container) error {
		return c.Open(password)
	}, false)
}

func (s *Session) start(op, path string, init func(*Container) error, created bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.container != nil {
		return NewStateError(op, "a vault is already open: "+s.container.Path())
	}

	if s.opts.Experimental.selfTest() {
		report, err := SelfTest(context.Background(), s.reg)
		if err != nil {
			s.log.Error().Err(err).Msg("self-test failed")
			return err
		}
		s.log.Info().Int("checks", len(report.Results)).Float64("bit_ratio", report.BitRatio).Msg("self-test passed")
		for _, w := range report.Warnings() {
			s.log.Warn().Msg(w)
		}
	}

	if !created && s.unlock.Tokens() < 1 {
		return NewStateError(op, ErrTooManyAttempts.Error())
	}

	c := NewContainer(path, s.opts)
	if err := init(c); err != nil {
		if IsAuthenticationError(err) {
			s.unlock.Allow()
			s.log.Warn().Str("path", path).Msg("unlock failed")
		}
		return err
	}
	v, err := NewVFS(c)
	if err != nil {
		c.Close()
		if created {
			os.Remove(path)
		}
		return err
	}

	s.container = c
	s.vfs = v
	s.lastActivity = s.now()
	s.startWatcher()
	return nil
}

// Close closes the open vault. Closing a session with no vault is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeVault()
}

func (s *Session) closeVault() error {
	s.stopWatcher()
	if s.container == nil {
		return nil
	}
	err := s.container.Close()
	s.container = nil
	s.vfs = nil
	return err
}

// IsOpen reports whether a vault is open
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.container != nil
}

// Path returns the path of the open vault, or "" when none is open
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.container == nil {
		return ""
	}
	return s.container.Path()
}

// SetAutoLock closes the vault after timeout of inactivity and then calls
// onLock, outside the session lock. A zero timeout disables auto-lock.
func (s *Session) SetAutoLock(timeout time.Duration, onLock func()) error {
	if timeout < 0 {
		return NewValidationError("auto_lock", timeout, "timeout cannot be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.autoLock = timeout
	s.onLock = onLock
	s.stopWatcher()
	if s.container != nil {
		s.lastActivity = s.now()
		s.startWatcher()
	}
	return nil
}

// watchInterval is how often the watcher compares idle time to timeout
func watchInterval(timeout time.Duration) time.Duration {
	iv := timeout / 4
	if iv > time.Second {
		iv = time.Second
	}
	if iv < time.Millisecond {
		iv = time.Millisecond
	}
	return iv
}

func (s *Session) startWatcher() {
	if s.autoLock <= 0 || s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop
	go s.watch(s.autoLock, stop)
}

func (s *Session) stopWatcher() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Session) watch(timeout time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(watchInterval(timeout))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if locked, onLock := s.expire(timeout, stop); locked {
				if onLock != nil {
					onLock()
				}
				return
			}
		}
	}
}

// expire closes the vault if it has been idle for timeout. stop guards
// against acting on behalf of a watcher that has already been replaced.
func (s *Session) expire(timeout time.Duration, stop <-chan struct{}) (bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-stop:
		return false, nil
	default:
	}
	if s.container == nil || s.now().Sub(s.lastActivity) < timeout {
		return false, nil
	}

	path := s.container.Path()
	if err := s.closeVault(); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("auto-lock close failed")
	}
	s.log.Info().Str("path", path).Dur("idle", timeout).Msg("auto-locked")
	return true, s.onLock
}

// touch records activity. Callers hold s.mu.
func (s *Session) touch(op string) error {
	if s.container == nil {
		return NewStateError(op, "no vault is open")
	}
	s.lastActivity = s.now()
	return nil
}

// Info describes the open container
func (s *Session) Info() (ContainerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("info"); err != nil {
		return ContainerInfo{}, err
	}
	return s.container.Info()
}

// Fingerprint returns the salted hash of the open container's key block
func (s *Session) Fingerprint(id HashID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("fingerprint"); err != nil {
		return nil, err
	}
	h, err := s.reg.Hash(id)
	if err != nil {
		return nil, err
	}
	return s.container.Fingerprint(h)
}

// ChangePassword re-wraps the vault key. Both slices are wiped.
func (s *Session) ChangePassword(oldPassword, newPassword []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("change password"); err != nil {
		wipe(oldPassword, newPassword)
		return err
	}
	return s.container.ChangePassword(oldPassword, newPassword)
}

func (s *Session) CreateDirectory(path string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("mkdir"); err != nil {
		return Entry{}, err
	}
	return s.vfs.CreateDirectory(path)
}

func (s *Session) MkdirAll(path string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("mkdir"); err != nil {
		return Entry{}, err
	}
	return s.vfs.MkdirAll(path)
}

func (s *Session) CreateFile(path string, content []byte) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("create"); err != nil {
		return Entry{}, err
	}
	return s.vfs.CreateFile(path, content)
}

func (s *Session) ReadFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("read"); err != nil {
		return nil, err
	}
	return s.vfs.ReadFile(path)
}

func (s *Session) WriteFile(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("write"); err != nil {
		return err
	}
	return s.vfs.WriteFile(path, content)
}

func (s *Session) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("delete"); err != nil {
		return err
	}
	return s.vfs.Delete(path)
}

func (s *Session) Move(src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("move"); err != nil {
		return err
	}
	return s.vfs.Move(src, dst)
}

func (s *Session) List(path string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("list"); err != nil {
		return nil, err
	}
	return s.vfs.List(path)
}

func (s *Session) Exists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("exists"); err != nil {
		return false, err
	}
	return s.vfs.Exists(path), nil
}

func (s *Session) Stat(path string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("stat"); err != nil {
		return Entry{}, err
	}
	return s.vfs.Stat(path)
}

// Walk visits path and its descendants with the session locked; fn must not
// call back into the session
func (s *Session) Walk(path string, fn WalkFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("walk"); err != nil {
		return err
	}
	return s.vfs.Walk(path, fn)
}

// Import copies a host file or tree into the vault directory dstDir
func (s *Session) Import(ctx context.Context, src absfs.FileSystem, srcPath, dstDir string, progress ProgressFunc) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("import"); err != nil {
		return 0, err
	}
	defer s.touch("import")
	return Import(ctx, src, srcPath, s.vfs, dstDir, progress)
}

// Export copies a vault file or tree into dstDir on dst
func (s *Session) Export(ctx context.Context, srcPath string, dst absfs.FileSystem, dstDir string, progress ProgressFunc) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("export"); err != nil {
		return 0, err
	}
	defer s.touch("export")
	return Export(ctx, s.vfs, srcPath, dst, dstDir, progress)
}

// WithFS runs fn against a filesystem view of the vault while holding the
// session lock. The view must not be retained after fn returns.
func (s *Session) WithFS(fn func(*FS) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch("fs"); err != nil {
		return err
	}
	if fn == nil {
		return errors.New("nil fs callback")
	}
	defer s.touch("fs")
	return fn(NewFS(s.vfs))
}

package bus

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const (
	spoolExt         = ".msg"
	spoolTmpPrefix   = ".tmp-"
	defaultRetention = time.Minute
)

// Spool is a cross-process bus endpoint. Every message is a file in a shared
// directory; endpoints learn about new files through fsnotify.
//
// Layout: <dir>/<channel>/<unixnano>-<endpoint>-<seq>.msg
//
// Files are written to a temp name and renamed into place so readers never
// observe a partial envelope. Files older than the retention window are
// pruned by whichever endpoint publishes next.
type Spool struct {
	dir       string
	id        string
	retention time.Duration
	logger    *slog.Logger

	watcher *fsnotify.Watcher
	ch      chan Message
	seq     atomic.Uint64

	mu     sync.Mutex
	closed bool
	stopCh chan struct{}
	doneCh chan struct{}
}

// SpoolOption configures a Spool.
type SpoolOption func(*Spool)

// WithRetention sets how long message files are kept before pruning.
func WithRetention(d time.Duration) SpoolOption {
	return func(s *Spool) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSpoolLogger sets the logger for transport diagnostics.
func WithSpoolLogger(l *slog.Logger) SpoolOption {
	return func(s *Spool) {
		if l != nil {
			s.logger = l
		}
	}
}

// OpenSpool attaches an endpoint to the named channel under dir, creating
// the directory if needed. Messages published before OpenSpool returns are
// not replayed.
func OpenSpool(dir, name string, opts ...SpoolOption) (*Spool, error) {
	chanDir := filepath.Join(dir, name)
	if err := os.MkdirAll(chanDir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(chanDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch spool dir: %w", err)
	}

	s := &Spool{
		dir:       chanDir,
		id:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		retention: defaultRetention,
		logger:    slog.Default(),
		watcher:   watcher,
		ch:        make(chan Message, defaultBuffer),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s, nil
}

// Publish writes m into the spool directory.
func (s *Spool) Publish(m Message) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := Encode(m)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%020d-%s-%06d%s", time.Now().UnixNano(), s.id, s.seq.Add(1), spoolExt)
	tmp := filepath.Join(s.dir, spoolTmpPrefix+name)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write spool message: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit spool message: %w", err)
	}

	s.prune()
	return nil
}

// Messages returns the receive channel.
func (s *Spool) Messages() <-chan Message {
	return s.ch
}

// Close stops the watcher goroutine and closes the receive channel.
func (s *Spool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	err := s.watcher.Close()
	close(s.ch)
	return err
}

func (s *Spool) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				s.handle(ev.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("spool watcher error", "dir", s.dir, "error", err)
		}
	}
}

// handle reads one message file and delivers it unless it was published by
// this endpoint.
func (s *Spool) handle(path string) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, spoolExt) || strings.HasPrefix(base, spoolTmpPrefix) {
		return
	}
	if strings.Contains(base, "-"+s.id+"-") {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// Already pruned by a sibling.
		s.logger.Debug("spool message vanished", "file", base, "error", err)
		return
	}
	m, err := Decode(data)
	if err != nil {
		s.logger.Debug("ignoring malformed spool message", "file", base, "error", err)
		return
	}

	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// prune removes message files older than the retention window.
func (s *Spool) prune() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.retention)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
}

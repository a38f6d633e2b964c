package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
	"go.uber.org/zap"
)

// KindDir marks documents read from a landing directory.
const KindDir = "dir"

// fileVersion identifies one version of a landing file.
type fileVersion struct {
	size    int64
	modTime int64
}

// DirSource polls a landing directory for new or changed files.
// Dot-prefixed files are skipped so writers can stage uploads and rename.
// Seen versions live in memory only: after a restart every file is routed
// again, which the idempotent gate makes safe.
type DirSource struct {
	dir      string
	interval time.Duration
	queue    *queue.Queue
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]fileVersion
	done     map[string]fileVersion
}

// NewDirSource creates a poller over dir
func NewDirSource(dir string, interval time.Duration, q *queue.Queue, logger *zap.Logger) (*DirSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("landing directory cannot be empty")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got: %v", interval)
	}
	if q == nil || logger == nil {
		return nil, fmt.Errorf("queue and logger cannot be nil")
	}

	return &DirSource{
		dir:      dir,
		interval: interval,
		queue:    q,
		logger:   logger,
		inflight: make(map[string]fileVersion),
		done:     make(map[string]fileVersion),
	}, nil
}

// Start polls immediately and then every interval until ctx is cancelled
func (s *DirSource) Start(ctx context.Context) error {
	s.logger.Info("Starting landing directory source",
		zap.String("dir", s.dir),
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Landing directory source stopped due to context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, queue.ErrQueueClosed) {
				return err
			}
			s.logger.Error("Failed to scan landing directory", zap.Error(err), zap.String("dir", s.dir))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Landing directory source stopped due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll scans the landing directory once and enqueues every unseen file version
func (s *DirSource) Poll(ctx context.Context) error {
	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != s.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("Failed to stat landing file", zap.String("path", path), zap.Error(err))
			return nil
		}
		version := fileVersion{size: info.Size(), modTime: info.ModTime().UnixNano()}
		if !s.claim(path, version) {
			return nil
		}

		body, err := os.ReadFile(path)
		if err != nil {
			s.release(path, version)
			s.logger.Warn("Failed to read landing file", zap.String("path", path), zap.Error(err))
			return nil
		}

		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			rel = d.Name()
		}
		doc := &types.Document{
			Name: filepath.ToSlash(rel),
			Body: body,
			Meta: &types.DocumentMeta{
				Source:     KindDir,
				Path:       path,
				Size:       info.Size(),
				ModTime:    info.ModTime(),
				ReceivedAt: time.Now(),
			},
		}

		if err := s.queue.Enqueue(ctx, doc); err != nil {
			s.release(path, version)
			return err
		}

		s.logger.Debug("Enqueued document",
			zap.String("document", doc.Name),
			zap.Int("bodyLength", len(body)),
			zap.Int("queueDepth", s.queue.Depth()),
		)
		return nil
	})
}

// Commit records the routed file version as done.
// A newer version of the same file claimed meanwhile stays in flight.
func (s *DirSource) Commit(doc *types.Document) {
	if doc == nil || doc.Meta == nil {
		return
	}
	v := versionOf(doc.Meta)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[doc.Meta.Path]; ok && cur == v {
		s.done[doc.Meta.Path] = v
		delete(s.inflight, doc.Meta.Path)
	}
}

// Abandon releases the file version so the next poll routes it again
func (s *DirSource) Abandon(doc *types.Document) {
	if doc == nil || doc.Meta == nil {
		return
	}
	if !s.release(doc.Meta.Path, versionOf(doc.Meta)) {
		s.logger.Debug("Abandoned document superseded by a newer version", zap.String("document", doc.Name))
		return
	}
	s.logger.Warn("Document abandoned, will retry on next poll", zap.String("document", doc.Name))
}

// Close is a no-op; the poller holds no open handles
func (s *DirSource) Close() error { return nil }

// claim marks path as in flight unless this version is already in flight or done
func (s *DirSource) claim(path string, v fileVersion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[path]; ok && cur == v {
		return false
	}
	if cur, ok := s.done[path]; ok && cur == v {
		return false
	}
	s.inflight[path] = v
	return true
}

// release drops the in-flight claim on path if it still holds version v
func (s *DirSource) release(path string, v fileVersion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[path]; !ok || cur != v {
		return false
	}
	delete(s.inflight, path)
	return true
}

func versionOf(meta *types.DocumentMeta) fileVersion {
	return fileVersion{size: meta.Size, modTime: meta.ModTime.UnixNano()}
}

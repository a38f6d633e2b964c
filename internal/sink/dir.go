package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DirSink writes routed documents as files under a root directory,
// mirroring the landing zone layout.
type DirSink struct {
	root   string
	logger *zap.Logger
}

// NewDirSink creates the root directory if needed and returns a sink over it
func NewDirSink(root string, logger *zap.Logger) (*DirSink, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", root, err)
	}
	return &DirSink{root: root, logger: logger}, nil
}

// Root returns the destination directory
func (s *DirSink) Root() string { return s.root }

// Deliver writes the body to root/name through a temp file and rename, so a
// repeated delivery replaces the file instead of leaving a partial copy.
func (s *DirSink) Deliver(ctx context.Context, d Delivery) error {
	if d.Doc == nil {
		return errors.New("document cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.pathFor(d.Doc.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".incoming-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(d.Doc.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to move document to %s: %w", target, err)
	}

	s.logger.Debug("Document written",
		zap.String("path", target),
		zap.String("invocationID", d.InvocationID),
	)
	return nil
}

// Close is a no-op; DirSink holds no open handles
func (s *DirSink) Close() error { return nil }

// pathFor maps a document name to a path that cannot escape root
func (s *DirSink) pathFor(name string) (string, error) {
	clean := filepath.Clean("/" + filepath.ToSlash(name))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

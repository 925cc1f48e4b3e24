package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/storage"
)

const contentType = "application/pdf"

// System stages, acquires, and releases run artifacts.
type System interface {
	// Stage writes r under a fresh key. The artifact's RunID is the key's UUID
	// and the file appears atomically.
	Stage(ctx context.Context, r io.Reader, name string) (*Artifact, error)
	// Acquire returns the artifact for key, fetching it from the blob mirror
	// when it is not on local disk.
	Acquire(ctx context.Context, key, name string) (*Artifact, error)
	// Release removes the local file and blob mirror. It is idempotent and
	// accepts a nil artifact.
	Release(ctx context.Context, a *Artifact) error
	// Discard releases the artifact stored under key without acquiring it.
	Discard(ctx context.Context, key string) error
}

type stager struct {
	dir    string
	blobs  storage.System
	logger *slog.Logger
}

// New creates an artifact system rooted at dir. blobs may be nil, in which
// case artifacts live only on local disk.
func New(dir string, blobs storage.System, logger *slog.Logger) System {
	return &stager{
		dir:    dir,
		blobs:  blobs,
		logger: logger.With("system", "artifacts"),
	}
}

func (s *stager) Stage(ctx context.Context, r io.Reader, name string) (*Artifact, error) {
	runID := uuid.New()
	key := NewKey(runID)

	var mirror bytes.Buffer
	src := r
	if s.blobs != nil {
		src = io.TeeReader(r, &mirror)
	}

	size, err := s.write(key, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStage, err)
	}

	a := &Artifact{
		Key:   key,
		Name:  name,
		RunID: runID,
		Size:  size,
		path:  filepath.Join(s.dir, key),
	}

	if s.blobs != nil {
		if err := s.blobs.Upload(ctx, key, &mirror, contentType); err != nil {
			s.removeLocal(a)
			return nil, fmt.Errorf("%w: mirror: %w", ErrStage, err)
		}
	}

	s.logger.Info("artifact staged", "key", key, "name", name, "size", size)
	return a, nil
}

func (s *stager) Acquire(ctx context.Context, key, name string) (*Artifact, error) {
	runID, err := RunIDFromKey(key)
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		Key:   key,
		Name:  name,
		RunID: runID,
		path:  filepath.Join(s.dir, key),
	}

	if info, err := os.Stat(a.path); err == nil {
		a.Size = info.Size()
		return a, nil
	}

	if s.blobs == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	body, err := s.blobs.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	defer body.Close()

	size, err := s.write(key, body)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	a.Size = size

	s.logger.Info("artifact acquired from mirror", "key", key)
	return a, nil
}

func (s *stager) Release(ctx context.Context, a *Artifact) error {
	if a == nil {
		return nil
	}

	var errs []error
	if err := s.removeLocal(a); err != nil {
		errs = append(errs, err)
	}

	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, a.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete mirror %s: %w", a.Key, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("artifact release incomplete", "key", a.Key, "error", err)
		return err
	}

	s.logger.Info("artifact released", "key", a.Key)
	return nil
}

func (s *stager) Discard(ctx context.Context, key string) error {
	runID, err := RunIDFromKey(key)
	if err != nil {
		return err
	}
	return s.Release(ctx, &Artifact{
		Key:   key,
		RunID: runID,
		path:  filepath.Join(s.dir, key),
	})
}

// write copies r to <dir>/.<key>.part, syncs, and renames it into place.
func (s *stager) write(key string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create staging dir: %w", err)
	}

	final := filepath.Join(s.dir, key)
	part := filepath.Join(s.dir, "."+key+".part")

	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", part, err)
	}

	size, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return 0, fmt.Errorf("write %s: %w", part, err)
	}

	if err := os.Rename(part, final); err != nil {
		os.Remove(part)
		return 0, fmt.Errorf("rename %s: %w", final, err)
	}

	return size, nil
}

func (s *stager) removeLocal(a *Artifact) error {
	if a.path == "" {
		return nil
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", a.path, err)
	}
	return nil
}

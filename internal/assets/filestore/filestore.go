// Package filestore keeps synthesized audio on the local filesystem and hands
// out stable public URLs for it.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"podcastai/internal/config"
	"podcastai/internal/domain"
)

const (
	extension = ".mp3"
	filePerm  = 0o644
	dirPerm   = 0o755
)

type Store struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

func New(cfg config.AssetsConfig, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Store{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:  logger.With("component", "filestore"),
	}, nil
}

// Store writes data under a fresh name and returns its public URL. The file
// only becomes visible once it is fully written and synced.
func (s *Store) Store(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + extension
	if err := writeFileAtomic(filepath.Join(s.dir, name), data, filePerm); err != nil {
		return "", err
	}

	url := s.baseURL + "/" + name
	s.logger.Debug("asset stored", "audio_url", url, "size", humanize.Bytes(uint64(len(data))))
	return url, nil
}

// Fetch opens an asset previously returned by Store.
func (s *Store) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(url)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	return f, nil
}

// Delete removes an asset. Missing assets are not an error.
func (s *Store) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(url)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove asset: %w", err)
	}
	s.logger.Debug("asset deleted", "audio_url", url)
	return nil
}

// resolve maps a public URL back to a path, accepting only names Store issues.
func (s *Store) resolve(url string) (string, error) {
	name, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	}
	stem, ok := strings.CutSuffix(name, extension)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	}
	if _, err := uuid.Parse(stem); err != nil || strings.ContainsAny(stem, `/\.`) {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	}
	return filepath.Join(s.dir, name), nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "asset-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return syncDir(filepath.Dir(path))
}

// syncDir flushes the directory entry so a renamed file survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open asset dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync asset dir: %w", err)
	}
	return nil
}

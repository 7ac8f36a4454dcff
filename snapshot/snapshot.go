// Package snapshot materializes filesystem snapshots for build stages: the
// initial source-tree artifact, scoped working copies derived from parent
// artifacts, and the content-addressing hashes used for fingerprinting.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"buildpipe/apperrors"
	"buildpipe/pipeline"
)

// Source supplies the initial artifact for the root stage.
type Source interface {
	// Snapshot materializes a fresh copy of the source tree under the work
	// root and returns it as an artifact.
	Snapshot(ctx context.Context) (*pipeline.Artifact, error)
}

// DirSource snapshots a local source directory.
type DirSource struct {
	dir      string
	workRoot string
}

// NewDirSource creates a source over a local directory. Snapshots are
// materialized under workRoot.
func NewDirSource(dir, workRoot string) *DirSource {
	return &DirSource{dir: dir, workRoot: workRoot}
}

// Snapshot copies the source tree into a new scoped directory and seals it.
func (s *DirSource) Snapshot(ctx context.Context) (*pipeline.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := filepath.Join(s.workRoot, "source-"+uuid.NewString()[:8])
	if err := CopyTree(s.dir, dst); err != nil {
		return nil, apperrors.Internal("snapshot.copySource", err)
	}
	return Seal("", dst)
}

// Seal fingerprints a directory and wraps it as an immutable artifact.
func Seal(stage, dir string) (*pipeline.Artifact, error) {
	fp, err := HashTree(dir)
	if err != nil {
		return nil, apperrors.Internal("snapshot.hashTree", err)
	}
	return &pipeline.Artifact{
		Stage:       stage,
		Fingerprint: fp,
		Dir:         dir,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Derive creates an exclusively owned working copy of the parent artifact
// for a stage execution. The copy is scoped by a fresh suffix so repeated
// executions supersede rather than overwrite earlier artifacts.
func Derive(parent *pipeline.Artifact, workRoot, stage string) (string, error) {
	dst := filepath.Join(workRoot, fmt.Sprintf("%s-%s", stage, uuid.NewString()[:8]))
	if err := CopyTree(parent.Dir, dst); err != nil {
		return "", apperrors.Internal("snapshot.deriveWorkspace", err)
	}
	return dst, nil
}

// CopyTree recursively copies a directory. Regular files and directories
// only; permissions are preserved.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		target := filepath.Join(dst, relPath)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return out.Close()
}

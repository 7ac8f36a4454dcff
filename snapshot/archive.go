package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"buildpipe/pipeline"
)

// Export writes an artifact's snapshot to a tar.gz archive at destPath.
func Export(art *pipeline.Artifact, destPath string) error {
	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	if err := archiveDir(tarWriter, art.Dir); err != nil {
		return err
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return gzWriter.Close()
}

// Import extracts a tar.gz archive into destDir and seals the result as an
// artifact attributed to the given stage.
func Import(srcPath, destDir, stage string) (*pipeline.Artifact, error) {
	inFile, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer inFile.Close()

	gzReader, err := gzip.NewReader(inFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip header: %w", err)
	}
	defer gzReader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}

		if err := extractEntry(tarReader, header, destDir); err != nil {
			return nil, err
		}
	}

	return Seal(stage, destDir)
}

func archiveDir(tw *tar.Writer, srcDir string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		header.Name = filepath.ToSlash(relPath)

		if info.IsDir() {
			return tw.WriteHeader(header)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()

		if _, err := io.Copy(tw, file); err != nil {
			return fmt.Errorf("failed to write file to tar: %w", err)
		}
		return nil
	})
}

func extractEntry(tr *tar.Reader, header *tar.Header, destDir string) error {
	// Reject entries that would escape the destination directory.
	cleaned := filepath.Clean(filepath.FromSlash(header.Name))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return fmt.Errorf("archive entry %q escapes destination", header.Name)
	}
	target := filepath.Join(destDir, cleaned)

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, header.FileInfo().Mode().Perm())

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, header.FileInfo().Mode().Perm())
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("failed to extract file: %w", err)
		}
		return out.Close()

	default:
		// Skip non-regular entries (symlinks, devices).
		return nil
	}
}

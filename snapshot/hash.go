package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"buildpipe/pipeline"
)

// HashTree computes a deterministic content fingerprint over a directory:
// every regular file's relative path and content, walked in sorted order
// with length-prefixed framing.
func HashTree(dir string) (pipeline.Fingerprint, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)

	h := sha256.New()
	for _, rel := range files {
		writeField(h, []byte(filepath.ToSlash(rel)))

		fileHash, err := hashFile(filepath.Join(dir, rel))
		if err != nil {
			return "", err
		}
		writeField(h, fileHash)
	}
	return pipeline.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// HashInputs computes a content hash for each declared build-time input,
// resolved relative to root. Inputs may be files or directories. A missing
// input hashes to a distinct marker so its appearance later invalidates the
// fingerprint.
func HashInputs(root string, inputs []string) ([]string, error) {
	hashes := make([]string, 0, len(inputs))
	for _, in := range inputs {
		path := filepath.Join(root, filepath.FromSlash(in))

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			hashes = append(hashes, "absent:"+in)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat input %s: %w", in, err)
		}

		if info.IsDir() {
			fp, err := HashTree(path)
			if err != nil {
				return nil, fmt.Errorf("hashing input %s: %w", in, err)
			}
			hashes = append(hashes, fp.String())
			continue
		}

		sum, err := hashFile(path)
		if err != nil {
			return nil, fmt.Errorf("hashing input %s: %w", in, err)
		}
		hashes = append(hashes, hex.EncodeToString(sum))
	}
	return hashes, nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}
	return h.Sum(nil), nil
}

func writeField(h io.Writer, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}

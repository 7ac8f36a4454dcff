package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// ComputeFingerprint derives a stage's cache key from its parent stage's
// fingerprint (empty for a root stage), its ordered command sequence, and
// the content hashes of its declared build-time inputs. The key is scoped strictly to the stage's own
// inputs and ancestors; sibling and descendant stages never affect it.
func ComputeFingerprint(parent Fingerprint, commands []string, inputHashes []string) Fingerprint {
	h := sha256.New()

	writeField := func(data []byte) {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(data)))
		h.Write(length[:])
		h.Write(data)
	}

	writeCount := func(n int) {
		var count [8]byte
		binary.BigEndian.PutUint64(count[:], uint64(n))
		writeField(count[:])
	}

	writeField([]byte(parent))

	writeCount(len(commands))
	for _, cmd := range commands {
		writeField([]byte(cmd))
	}

	writeCount(len(inputHashes))
	for _, ih := range inputHashes {
		writeField([]byte(ih))
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

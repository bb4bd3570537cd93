package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"sync"
)

const hashBytes = 8192 // First 8KB for content hash

// ComputeHash generates a content hash for file identity.
func ComputeHash(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, hashBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	st, err := f.Stat()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(buf[:n])
	// Size guards against files that only differ past the first 8KB.
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(st.Size())))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]), nil // First 16 bytes = 32 hex chars
}

// Tracker remembers which dataset the server currently holds.
type Tracker struct {
	mu      sync.RWMutex
	current *Summary
}

// Current returns the dataset last marked as uploaded, or nil.
func (t *Tracker) Current() *Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// NeedsUpload reports whether s differs from what the server holds.
func (t *Tracker) NeedsUpload(s *Summary) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current == nil || t.current.Fingerprint != s.Fingerprint
}

// MarkUploaded records s as the server's dataset.
func (t *Tracker) MarkUploaded(s *Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = s
}

// Clear forgets the server's dataset.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}

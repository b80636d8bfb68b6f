// Package hash computes the fixed-width fingerprint used to key cache entries.
//
// A fingerprint is a digest over bytes and file contents only: no path, mtime, or
// inode bits ever enter it, so the same logical input produces the same fingerprint
// regardless of where or when it was read. A collision-resistant non-cryptographic
// digest is sufficient here (inputs are not adversarial), so the hasher is backed by
// murmur3's 128-bit variant rather than a cryptographic hash.
package hash

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/spaolacci/murmur3"
)

// Size is the width of a Fingerprint in bytes (128 bits).
const Size = 16

// Fingerprint is a fixed-width digest, rendered as lowercase hex for use in paths.
type Fingerprint [Size]byte

// String renders the fingerprint as a lowercase hex string.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero fingerprint (never a valid digest in practice,
// used as a sentinel for "no fingerprint computed").
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Hasher is a streaming fingerprint accumulator. Create one with New; the zero value
// has no digest state and is not usable.
type Hasher struct {
	h murmur3.Hash128
}

// New creates a new, empty Hasher.
func New() *Hasher {
	return &Hasher{h: murmur3.New128()}
}

// Update folds raw bytes into the running digest.
func (hr *Hasher) Update(data []byte) {
	_, _ = hr.h.Write(data)
}

// UpdateFromFile folds a file's content into the running digest. Only the byte
// content is hashed; the path itself is not.
func (hr *Hasher) UpdateFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(hr.h, f)
	return err
}

// Final returns the accumulated fingerprint. The Hasher must not be reused afterwards.
func (hr *Hasher) Final() Fingerprint {
	var fp Fingerprint
	hi, lo := hr.h.Sum128()
	putUint64(fp[0:8], hi)
	putUint64(fp[8:16], lo)
	return fp
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
}

// Bytes is a convenience one-shot hash of a byte slice.
func Bytes(data []byte) Fingerprint {
	hr := New()
	hr.Update(data)
	return hr.Final()
}

// File is a convenience one-shot hash of a file's content.
func File(path string) (Fingerprint, error) {
	hr := New()
	if err := hr.UpdateFromFile(path); err != nil {
		return Fingerprint{}, err
	}
	return hr.Final(), nil
}

// ParseFingerprint parses a lowercase hex string back into a Fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return fp, err
	}
	if len(b) != Size {
		return fp, ErrInvalidLength
	}
	copy(fp[:], b)
	return fp, nil
}

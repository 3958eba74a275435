package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// MaxHashSize is the number of leading body bytes included in the hash.
const MaxHashSize = 1024 * 1024

// BodyHasher is an io.Reader that hashes and counts what passes through.
type BodyHasher struct {
	r      io.Reader
	h      hash.Hash
	n      int64
	hashed int64
}

// NewBodyHasher wraps r.
func NewBodyHasher(r io.Reader) *BodyHasher {
	return &BodyHasher{r: r, h: sha256.New()}
}

// Read implements io.Reader.
func (b *BodyHasher) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if n > 0 {
		b.n += int64(n)
		if room := MaxHashSize - b.hashed; room > 0 {
			chunk := p[:n]
			if int64(len(chunk)) > room {
				chunk = chunk[:room]
			}
			b.h.Write(chunk)
			b.hashed += int64(len(chunk))
		}
	}
	return n, err
}

// Bytes returns the number of bytes read so far.
func (b *BodyHasher) Bytes() int64 { return b.n }

// Sum returns the hex SHA-256 of the bytes read, or "" if none were.
func (b *BodyHasher) Sum() string {
	if b.n == 0 {
		return ""
	}
	return hex.EncodeToString(b.h.Sum(nil))
}

// HashContent returns the hex SHA-256 of the first MaxHashSize bytes of
// content, or "" when content is empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	if len(content) > MaxHashSize {
		content = content[:MaxHashSize]
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

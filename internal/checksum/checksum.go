// Package checksum computes content digests for records.
package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/starford/ansuz/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Record returns a digest over the owner and the ordered (author, text)
// pairs of rec. Two fetches of an unchanged record yield the same digest.
// Every field is length-prefixed, so no field content can mimic a boundary.
func Record(rec models.Record) string {
	h := sha256.New()
	writeField(h, string(rec.Owner))
	for _, c := range rec.Contributions {
		writeField(h, string(c.Author))
		writeField(h, c.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

package doculite

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ObjectId is a 24-character lowercase hexadecimal document identifier:
// the low 32 bits of the current Unix time in seconds (8 hex chars),
// followed by 10 hex chars of per-call randomness, followed by 6 hex chars
// drawn anew from 0..2^24-1. Identifiers are approximately time-ordered at
// second granularity; lexicographic order on the id is the default
// tiebreaker for "insertion order". There is no uniqueness guarantee, but
// collision probability is negligible within one host-second.
type ObjectId string

const objectIdLen = 24

// NewObjectId generates a fresh ObjectId.
func NewObjectId() ObjectId {
	var buf [12]byte

	ts := uint32(time.Now().Unix())
	buf[0] = byte(ts >> 24)
	buf[1] = byte(ts >> 16)
	buf[2] = byte(ts >> 8)
	buf[3] = byte(ts)

	// Two independent random draws: 5 bytes (10 hex) of per-call
	// randomness, then 3 more bytes (6 hex) drawn anew, as spec.md
	// requires two distinct random segments rather than one long one.
	r1 := uuid.New()
	copy(buf[4:9], r1[:5])
	r2 := uuid.New()
	copy(buf[9:12], r2[:3])

	return ObjectId(hex.EncodeToString(buf[:]))
}

// ObjectIdHex converts a 24-character hex string into an ObjectId. It
// panics if the string isn't a valid ObjectId hex representation, matching
// the convention of the driver wrapper this package evolved from.
func ObjectIdHex(s string) ObjectId {
	if !IsObjectIdHex(s) {
		panic("doculite: invalid ObjectId hex string: " + s)
	}
	return ObjectId(s)
}

// IsObjectIdHex reports whether s is a valid ObjectId hex representation.
func IsObjectIdHex(s string) bool {
	if len(s) != objectIdLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Hex returns the 24-character hex representation of the id.
func (id ObjectId) Hex() string {
	return string(id)
}

// Valid reports whether id is a well-formed ObjectId.
func (id ObjectId) Valid() bool {
	return IsObjectIdHex(string(id))
}

// Time returns the second-granularity timestamp embedded in the id's first
// 8 hex characters. It panics if id is not well-formed.
func (id ObjectId) Time() time.Time {
	b, err := hex.DecodeString(string(id)[:8])
	if err != nil || len(b) != 4 {
		panic("doculite: invalid ObjectId: " + string(id))
	}
	secs := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return time.Unix(int64(secs), 0).UTC()
}

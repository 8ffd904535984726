// Package key builds the position-hash storage key: a 12-byte position
// prefix (scope base XOR zobrist hash XOR variant constant, truncated
// to 96 bits) followed by a 2-byte big-endian time bucket.
//
// The scope base for the
// player pipeline is a salted digest of (color, user id) so that a range
// scan over one user's position prefix can never be guessed from another
// user's, and a crafted position cannot be made to appear in another
// user's explorer.
//
// © 2025 opening-explorer authors. MIT License.
package key

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/opnexpl/openingexplorer/internal/chess"
)

// Scope selects which of the three storage namespaces a key belongs to.
type Scope uint8

const (
	ScopeMasters Scope = iota
	ScopeLichess
	ScopePlayer
)

// Color distinguishes which side a player-scoped key is salted for.
type Color uint8

const (
	ColorWhite Color = iota
	ColorBlack
)

func (c Color) byte() byte {
	if c == ColorWhite {
		return 'w'
	}
	return 'b'
}

// Base128 is a 128-bit value represented as two big-endian halves, used for
// scope bases, zobrist hashes, and per-variant constants.
type Base128 [16]byte

// PlayerBase derives the per-(user,color) namespace base: the first 16
// bytes of sha256(color_char || lower-cased user id). Using a
// cryptographic digest (rather than a faster non-crypto hash) is the point
// here — the pack's general-purpose fast hashes (xxhash, maphash) are
// deliberately not used for this derivation because they would make it
// cheap to search for a colliding (user, position) namespace.
func PlayerBase(userID string, color Color) Base128 {
	h := sha256.New()
	h.Write([]byte{color.byte()})
	h.Write([]byte(strings.ToLower(userID)))
	sum := h.Sum(nil)
	var base Base128
	copy(base[:], sum[:16])
	return base
}

func xor128(a, b Base128) Base128 {
	var out Base128
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// PositionPrefix is the 12-byte key fragment identifying a (scope,
// variant, position) tuple: it is the low 96 bits of
// base XOR zobristHash XOR variantConstant.
type PositionPrefix [12]byte

// BuildPrefix combines the scope base, the position's 128-bit zobrist hash
// and the variant constant into a 12-byte position prefix.
func BuildPrefix(base Base128, zobrist chess.Zobrist, variantConstant Base128) PositionPrefix {
	var zb Base128
	binary.BigEndian.PutUint64(zb[0:8], zobrist.Hi)
	binary.BigEndian.PutUint64(zb[8:16], zobrist.Lo)

	combined := xor128(xor128(base, zb), variantConstant)
	var prefix PositionPrefix
	copy(prefix[:], combined[4:16]) // low 12 bytes (96 bits)
	return prefix
}

// Bucket is the 2-byte big-endian time suffix: a month index (12-packed
// years since 1952) for lichess/player scopes, a year index for masters.
type Bucket uint16

// MonthBucket packs (year, month) into the 12-per-year scheme used by
// lichess/player keys. year must be >= 1952.
func MonthBucket(year int, month int) Bucket {
	return Bucket((year-1952)*12 + (month - 1))
}

// YearBucket is the masters-scope bucket: the year itself, truncated to 16
// bits (ample headroom: chess has existed for under 65536 years either way).
func YearBucket(year int) Bucket {
	return Bucket(year)
}

// Key is a full storage key: prefix(12) || bucket_bigendian(2).
type Key [14]byte

// Build assembles a full key from a prefix and a bucket, preserving
// byte order so that keys within the same prefix sort by time bucket
// ascending.
func Build(prefix PositionPrefix, bucket Bucket) Key {
	var k Key
	copy(k[:12], prefix[:])
	binary.BigEndian.PutUint16(k[12:14], uint16(bucket))
	return k
}

// Prefix extracts the 12-byte position prefix from a full key.
func (k Key) Prefix() PositionPrefix {
	var p PositionPrefix
	copy(p[:], k[:12])
	return p
}

// Bucket extracts the time bucket from a full key.
func (k Key) Bucket() Bucket {
	return Bucket(binary.BigEndian.Uint16(k[12:14]))
}

// Bytes returns the key's wire representation.
func (k Key) Bytes() []byte {
	return k[:]
}

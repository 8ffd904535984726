// © 2025 opening-explorer authors. MIT License.

package entry

// playerstatus.go implements the per-user indexer state record: four
// varints in order (latest_created_at, revisit_ongoing_created_at_or_0,
// indexed_at_unix_secs, revisited_at_unix_secs). Read-modify-written by
// a single indexer worker at a time per user, never merged — it is a
// plain put in the player_status column family.

import "github.com/opnexpl/openingexplorer/internal/varint"

// PlayerStatus is read and written by exactly one indexer worker at a
// time for a given user; the storage engine's "player_status" column
// family has no merge operator, only plain put/get.
type PlayerStatus struct {
	LatestCreatedAt         int64
	RevisitOngoingCreatedAt int64 // 0 means unset
	IndexedAt               int64
	RevisitedAt             int64
}

// Encode writes s's binary form.
func (s PlayerStatus) Encode() []byte {
	var buf []byte
	buf = varint.AppendUint(buf, uint64(s.LatestCreatedAt))
	buf = varint.AppendUint(buf, uint64(s.RevisitOngoingCreatedAt))
	buf = varint.AppendUint(buf, uint64(s.IndexedAt))
	buf = varint.AppendUint(buf, uint64(s.RevisitedAt))
	return buf
}

// DecodePlayerStatus decodes a PlayerStatus record.
func DecodePlayerStatus(buf []byte) (PlayerStatus, error) {
	var s PlayerStatus
	var n int
	var err error

	var v uint64
	if v, n, err = varint.Uint(buf); err != nil {
		return PlayerStatus{}, err
	}
	s.LatestCreatedAt = int64(v)
	buf = buf[n:]

	if v, n, err = varint.Uint(buf); err != nil {
		return PlayerStatus{}, err
	}
	s.RevisitOngoingCreatedAt = int64(v)
	buf = buf[n:]

	if v, n, err = varint.Uint(buf); err != nil {
		return PlayerStatus{}, err
	}
	s.IndexedAt = int64(v)
	buf = buf[n:]

	if v, _, err = varint.Uint(buf); err != nil {
		return PlayerStatus{}, err
	}
	s.RevisitedAt = int64(v)

	return s, nil
}

// © 2025 opening-explorer authors. MIT License.

package storage

import "github.com/opnexpl/openingexplorer/internal/entry"

// defaultMergeTable binds the three aggregation CFs to their entry kind's
// merge function, and the lichess_game CF to the OR-merge-flags game-info
// merge. masters_game and player_status have no merge operator: they
// are plain put/get.
func defaultMergeTable() map[CF]MergeFunc {
	return map[CF]MergeFunc{
		CFMasters:     masterMerge,
		CFLichess:     lichessMerge,
		CFPlayer:      playerMerge,
		CFLichessGame: entry.MergeGameInfo,
	}
}

func masterMerge(existing []byte, operands [][]byte) ([]byte, error) {
	return entry.MergeMasters(existing, operands)
}

func lichessMerge(existing []byte, operands [][]byte) ([]byte, error) {
	return entry.MergeLichess(existing, operands)
}

func playerMerge(existing []byte, operands [][]byte) ([]byte, error) {
	return entry.MergePlayer(existing, operands)
}

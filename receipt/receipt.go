// Package receipt computes digests of search results, so that two searches
// can be compared without keeping their results around.
package receipt

import (
	"encoding/binary"
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const ErrTypeReceiptMismatch = "receipt_mismatch"

const tileEncodedSize = 3*4 + 8*8

// Receipt identifies the result of a search.
type Receipt struct {
	GraphUUID string      `json:"graph_uuid"`
	Frame     uint64      `json:"frame"`
	Visible   int         `json:"visible"`
	Hash      common.Hash `json:"hash"`
}

// New returns the receipt of a search result.
func New(graphUUID string, frame uint64, rs *graph.ResultSet) Receipt {
	r := Receipt{
		GraphUUID: graphUUID,
		Frame:     frame,
		Visible:   rs.Len(),
		Hash:      Digest(rs),
	}
	instrumentReceiptIssued(r.Visible)
	return r
}

// Encode returns the canonical encoding of a result set: its non-empty tiles
// sorted by origin, each as the x, y and z of its origin followed by its eight
// words, in little endian.
func Encode(rs *graph.ResultSet) []byte {
	tiles := make([]graph.Tile, 0, len(rs.Tiles))
	for _, t := range rs.Tiles {
		if t.Count() != 0 {
			tiles = append(tiles, t)
		}
	}
	slices.SortFunc(tiles, func(a, b graph.Tile) int {
		return a.Origin.Compare(b.Origin)
	})

	b := make([]byte, 0, len(tiles)*tileEncodedSize)
	for _, t := range tiles {
		b = binary.LittleEndian.AppendUint32(b, uint32(t.Origin.X))
		b = binary.LittleEndian.AppendUint32(b, uint32(t.Origin.Y))
		b = binary.LittleEndian.AppendUint32(b, uint32(t.Origin.Z))
		for _, w := range t.Words {
			b = binary.LittleEndian.AppendUint64(b, w)
		}
	}
	return b
}

// Digest returns the Keccak-256 hash of the canonical encoding of a result
// set.
func Digest(rs *graph.ResultSet) common.Hash {
	return crypto.Keccak256Hash(Encode(rs))
}

// Verify returns an error when the digest of the result set differs from the
// expected one.
func Verify(rs *graph.ResultSet, expected common.Hash) error {
	if hash := Digest(rs); hash != expected {
		err := errors.New("search result does not match receipt").
			WithType(ErrTypeReceiptMismatch).
			WithTag("expected", expected.Hex()).
			WithTag("hash", hash.Hex())
		instrumentReceiptVerificationError(err)
		return err
	}
	return nil
}

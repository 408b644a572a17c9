package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of a search result frame.
const (
	searchResultRequestID protowire.Number = 1
	searchResultFrame     protowire.Number = 2
	searchResultGraphUUID protowire.Number = 3
	searchResultVisible   protowire.Number = 4
	searchResultReceipt   protowire.Number = 5
	searchResultTile      protowire.Number = 6

	tileX     protowire.Number = 1
	tileY     protowire.Number = 2
	tileZ     protowire.Number = 3
	tileWords protowire.Number = 4
)

// SearchResult is the response to a graph search, sent as a binary frame in
// protobuf wire format.
type SearchResult struct {
	RequestID uint32
	Frame     uint64
	GraphUUID string
	Visible   int

	// Receipt is the digest of the result. It is zero when receipts are
	// disabled.
	Receipt common.Hash

	// Tiles holds the non-empty tiles of the result.
	Tiles []graph.Tile
}

// EncodeSearchResult appends the wire encoding of r to b.
func EncodeSearchResult(b []byte, r SearchResult) []byte {
	b = protowire.AppendTag(b, searchResultRequestID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.RequestID))
	b = protowire.AppendTag(b, searchResultFrame, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Frame)
	b = protowire.AppendTag(b, searchResultGraphUUID, protowire.BytesType)
	b = protowire.AppendString(b, r.GraphUUID)
	b = protowire.AppendTag(b, searchResultVisible, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Visible))

	if r.Receipt != (common.Hash{}) {
		b = protowire.AppendTag(b, searchResultReceipt, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Receipt.Bytes())
	}

	var tile []byte
	for _, t := range r.Tiles {
		if t.Count() == 0 {
			continue
		}

		tile = encodeTile(tile[:0], t)
		b = protowire.AppendTag(b, searchResultTile, protowire.BytesType)
		b = protowire.AppendBytes(b, tile)
	}
	return b
}

func encodeTile(b []byte, t graph.Tile) []byte {
	b = protowire.AppendTag(b, tileX, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(t.Origin.X)))
	b = protowire.AppendTag(b, tileY, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(t.Origin.Y)))
	b = protowire.AppendTag(b, tileZ, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(t.Origin.Z)))

	b = protowire.AppendTag(b, tileWords, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(len(t.Words)*8))
	for _, w := range t.Words {
		b = protowire.AppendFixed64(b, w)
	}
	return b
}

// DecodeSearchResult decodes a search result frame. Unknown fields are
// skipped.
func DecodeSearchResult(b []byte) (SearchResult, error) {
	var r SearchResult

	for len(b) != 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return SearchResult{}, malformedFrame(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == searchResultRequestID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return SearchResult{}, malformedFrame(protowire.ParseError(n))
			}
			r.RequestID = uint32(v)
			b = b[n:]

		case num == searchResultFrame && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return SearchResult{}, malformedFrame(protowire.ParseError(n))
			}
			r.Frame = v
			b = b[n:]

		case num == searchResultGraphUUID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return SearchResult{}, malformedFrame(protowire.ParseError(n))
			}
			r.GraphUUID = v
			b = b[n:]

		case num == searchResultVisible && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return SearchResult{}, malformedFrame(protowire.ParseError(n))
			}
			r.Visible = int(v)
			b = b[n:]

		case num == searchResultReceipt && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return SearchResult{}, malformedFrame(protowire.ParseError(n))
			}
			if len(v) != common.HashLength {
				return SearchResult{}, malformedFrame(errors.New("bad receipt size").
					WithTag("size", len(v)))
			}
			r.Receipt = common.BytesToHash(v)
			b = b[n:]

		case num == searchResultTile && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return SearchResult{}, malformedFrame(protowire.ParseError(n))
			}
			t, err := decodeTile(v)
			if err != nil {
				return SearchResult{}, err
			}
			r.Tiles = append(r.Tiles, t)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return SearchResult{}, malformedFrame(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return r, nil
}

func decodeTile(b []byte) (graph.Tile, error) {
	var t graph.Tile

	for len(b) != 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return graph.Tile{}, malformedFrame(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case (num == tileX || num == tileY || num == tileZ) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return graph.Tile{}, malformedFrame(protowire.ParseError(n))
			}
			c := int32(protowire.DecodeZigZag(v))
			switch num {
			case tileX:
				t.Origin.X = c
			case tileY:
				t.Origin.Y = c
			default:
				t.Origin.Z = c
			}
			b = b[n:]

		case num == tileWords && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return graph.Tile{}, malformedFrame(protowire.ParseError(n))
			}
			if len(v) != len(t.Words)*8 {
				return graph.Tile{}, malformedFrame(errors.New("bad tile size").
					WithTag("size", len(v)))
			}
			for i := range t.Words {
				w, m := protowire.ConsumeFixed64(v)
				if m < 0 {
					return graph.Tile{}, malformedFrame(protowire.ParseError(m))
				}
				t.Words[i] = w
				v = v[m:]
			}
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return graph.Tile{}, malformedFrame(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return t, nil
}

func malformedFrame(err error) error {
	return errors.New("malformed search result frame").
		WithType(ErrTypeMsgDecode).
		Wrap(err)
}

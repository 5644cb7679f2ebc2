package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborCodec pairs the encode and decode modes every cache namespace shares.
// Encoding is canonical so identical records always produce identical bytes;
// decoding is bounded because cache payloads here are small reference records
// (user profiles, branch lists, counters), never deeply nested documents.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var codec = newCodec()

func newCodec() cborCodec {
	enc, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339,
	}.EncMode()
	if err != nil {
		panic("cache: cbor encode mode: " + err.Error())
	}

	dec, err := cbor.DecOptions{
		MaxArrayElements: 4096,
		MaxMapPairs:      4096,
		MaxNestedLevels:  8,
	}.DecMode()
	if err != nil {
		panic("cache: cbor decode mode: " + err.Error())
	}

	return cborCodec{enc: enc, dec: dec}
}

// Marshal encodes a record for storage. Every namespace declares a fixed
// record type and crosses the cache boundary through here; raw untyped blobs
// never do.
func Marshal[T any](v T) ([]byte, error) {
	data, err := codec.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a stored record into T. Read paths treat a decode error
// as a miss, never as a propagated failure.
func Unmarshal[T any](data []byte) (T, error) {
	var v T
	if err := codec.dec.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode cache value: %w", err)
	}
	return v, nil
}

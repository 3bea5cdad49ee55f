package worker

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformedTile = errors.New("malformed vector tile")

// layersField is the field number of Tile.layers in the vector tile schema.
const layersField protowire.Number = 3

var gzipMagic = []byte{0x1f, 0x8b}

// unwrap returns the uncompressed tile bytes and the number of layers they
// declare. Only the envelope is checked; layer contents are left to the
// consumer.
func unwrap(raw []byte) ([]byte, int, error) {
	data := raw
	if bytes.HasPrefix(raw, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrMalformedTile, err)
		}
		defer zr.Close()

		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrMalformedTile, err)
		}
	}

	layers := 0
	for b := data; len(b) > 0; {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, 0, fmt.Errorf("%w: %w", ErrMalformedTile, protowire.ParseError(n))
		}
		b = b[n:]

		if num == layersField && typ != protowire.BytesType {
			return nil, 0, fmt.Errorf("%w: layer field has wire type %d", ErrMalformedTile, typ)
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, 0, fmt.Errorf("%w: %w", ErrMalformedTile, protowire.ParseError(n))
		}
		b = b[n:]

		if num == layersField {
			layers++
		}
	}

	return data, layers, nil
}

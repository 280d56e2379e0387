// Package compr decodes the payload of inode-data nodes. Each node names
// its codec in a one-byte tag; Decode is a pure function of the tag, the
// compressed bytes and the expected decompressed length.
package compr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/rasky/go-lzo"
	"github.com/ulikunitz/xz/lzma"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

// ErrUnsupported marks compression tags that can never be decoded:
// RUBINMIPS (deprecated upstream), COPY (never implemented upstream) and
// tags this package does not know. Callers must surface the error rather
// than fabricate content.
var ErrUnsupported = errors.New("unsupported compression")

// LZMA parameters used by the JFFS2 LZMA patch. The on-flash payload is a
// raw stream; the LZMA-alone header is reconstructed from these.
const (
	lzmaBestLC   = 0
	lzmaBestLP   = 0
	lzmaBestPB   = 0
	lzmaDictSize = 0x2000
)

// Decode decompresses in to exactly dstlen bytes according to tag.
func Decode(tag uint8, in []byte, dstlen int) ([]byte, error) {
	switch tag {
	case types.ComprNone:
		if len(in) != dstlen {
			return nil, fmt.Errorf("none: stored %d bytes, expected %d", len(in), dstlen)
		}
		out := make([]byte, dstlen)
		copy(out, in)
		return out, nil

	case types.ComprZero:
		// A hole: the payload is ignored entirely.
		return make([]byte, dstlen), nil

	case types.ComprRtime:
		return rtime(in, dstlen)

	case types.ComprDynrubin:
		return dynrubin(in, dstlen)

	case types.ComprRubinMIPS:
		return nil, fmt.Errorf("%w: RUBINMIPS", ErrUnsupported)

	case types.ComprCopy:
		return nil, fmt.Errorf("%w: COPY", ErrUnsupported)

	case types.ComprZlib:
		r, err := zlib.NewReader(bytes.NewReader(in))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer r.Close()
		out := make([]byte, dstlen)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		return out, nil

	case types.ComprLZO:
		out, err := lzo.Decompress1X(bytes.NewReader(in), len(in), dstlen)
		if err != nil {
			return nil, fmt.Errorf("lzo: %w", err)
		}
		if len(out) != dstlen {
			return nil, fmt.Errorf("lzo: produced %d bytes, expected %d", len(out), dstlen)
		}
		return out, nil

	case types.ComprLZMA:
		return decodeLZMA(in, dstlen)

	default:
		return nil, fmt.Errorf("%w: unknown tag %#02x", ErrUnsupported, tag)
	}
}

// decodeLZMA prepends the 13-byte LZMA-alone header the raw on-flash
// stream was written without, then decodes it.
func decodeLZMA(in []byte, dstlen int) ([]byte, error) {
	hdr := make([]byte, 13, 13+len(in))
	hdr[0] = (lzmaBestPB*5+lzmaBestLP)*9 + lzmaBestLC
	binary.LittleEndian.PutUint32(hdr[1:], lzmaDictSize)
	binary.LittleEndian.PutUint64(hdr[5:], uint64(dstlen))
	r, err := lzma.NewReader(bytes.NewReader(append(hdr, in...)))
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	out := make([]byte, dstlen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	return out, nil
}

// rtime expands the run-length scheme: each pair of input bytes is a
// literal plus a repeat count referring back to the position right after
// that literal's previous occurrence. Runs may overlap their own output.
func rtime(in []byte, dstlen int) ([]byte, error) {
	out := make([]byte, 0, dstlen)
	var positions [256]int
	pos := 0
	for len(out) < dstlen {
		if pos+2 > len(in) {
			return nil, fmt.Errorf("rtime: input exhausted at %d of %d output bytes", len(out), dstlen)
		}
		val := in[pos]
		repeat := int(in[pos+1])
		pos += 2

		out = append(out, val)
		backoffs := positions[val]
		positions[val] = len(out)
		if repeat == 0 {
			continue
		}
		if backoffs+repeat >= len(out) {
			// The run overlaps bytes it is itself producing.
			for ; repeat > 0; repeat-- {
				out = append(out, out[backoffs])
				backoffs++
			}
		} else {
			out = append(out, out[backoffs:backoffs+repeat]...)
		}
	}
	return out[:dstlen], nil
}

package compr

import "fmt"

// The rubin family is a carryless bitwise arithmetic-style coder over a
// 16-bit register, decided one output bit at a time against a static
// per-bit-position probability weight. "Dynamic" rubin only means the
// eight weights travel in the first eight payload bytes; nothing adapts
// during the decode itself.

const (
	rubinRegSize  = 16
	upperBitRubin = uint32(1) << (rubinRegSize - 1)
)

// dynrubin extracts the weight table from the payload head (each weight is
// 256 minus the stored byte) and decodes the remainder.
func dynrubin(in []byte, dstlen int) ([]byte, error) {
	if len(in) < 10 {
		return nil, fmt.Errorf("dynrubin: %d-byte payload is too short", len(in))
	}
	var weights [8]uint32
	for c := 0; c < 8; c++ {
		// The table lives in bytes, so a stored 0 wraps to weight 0;
		// the i0 floor lifts it back to 1 per decision.
		weights[c] = uint32(uint8(256 - uint32(in[c])))
	}
	return rubinDecode(weights, in[8:], dstlen), nil
}

// rubinDecoder holds the hand-threaded registers of the bit-decision loop.
// One value per decode call keeps parallel per-node decoding safe.
type rubinDecoder struct {
	in   []byte
	word uint32 // rolling 32-bit input word
	bit  uint32 // next bit index into word
	pos  int    // byte offset of word within in
	p    uint32 // interval width
	q    uint32 // interval base
	recQ uint32 // reconstructed code register
}

func newRubinDecoder(in []byte) *rubinDecoder {
	d := &rubinDecoder{in: in}
	// The first 16 bits seed the code register; the rolling word starts
	// over the same bytes with the counter already past them.
	d.word = loadWord(in, 0)
	d.bit = 16
	d.p = 2 * upperBitRubin
	if len(in) > 0 {
		d.recQ = uint32(in[0]) << 8
	}
	if len(in) > 1 {
		d.recQ |= uint32(in[1])
	}
	return d
}

func rubinDecode(weights [8]uint32, in []byte, dstlen int) []byte {
	d := newRubinDecoder(in)
	out := make([]byte, dstlen)
	for i := range out {
		var b byte
		for j := 0; j < 8; j++ {
			b >>= 1
			if d.decodeBit(weights[j]) {
				b |= 0x80
			}
		}
		out[i] = b
	}
	return out
}

// decodeBit makes one binary decision against weight.
func (d *rubinDecoder) decodeBit(weight uint32) bool {
	for (d.q&upperBitRubin) != 0 || d.p+d.q <= upperBitRubin {
		d.q &^= upperBitRubin
		d.q <<= 1
		d.p <<= 1
		d.recQ &^= upperBitRubin
		d.recQ <<= 1
		// The encoder packed bits per byte MSB-first within LE words,
		// hence the complemented low bits of the index.
		d.recQ |= (d.word >> (d.bit ^ 7)) & 1
		d.bit++
		if d.bit > 31 {
			d.bit = 0
			d.pos += 4
			d.word = loadWord(d.in, d.pos)
		}
	}
	// Floored but deliberately not clamped against p; a divergent decode
	// is caught by the node's data CRC instead.
	i0 := (weight * d.p) >> 8
	if i0 == 0 {
		i0 = 1
	}
	if d.recQ < d.q+i0 {
		d.p = i0
		return false
	}
	d.p -= i0
	d.q += i0
	return true
}

// loadWord reads a little-endian 32-bit word, padding with zero bits past
// the end of the input instead of overrunning it.
func loadWord(in []byte, pos int) uint32 {
	var w uint32
	for i := 0; i < 4 && pos+i < len(in); i++ {
		w |= uint32(in[pos+i]) << (8 * uint(i))
	}
	return w
}

package lib

import (
	"bytes"
	"encoding/binary"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

// imageBuilder assembles valid node byte streams for tests, computing the
// same CRCs the scanner verifies.
type imageBuilder struct {
	order binary.ByteOrder
	buf   bytes.Buffer
}

func newImageBuilder(order binary.ByteOrder) *imageBuilder {
	return &imageBuilder{order: order}
}

func (b *imageBuilder) Bytes() []byte { return b.buf.Bytes() }

// Erased appends n bytes of bulk-erased flash.
func (b *imageBuilder) Erased(n int) *imageBuilder {
	b.buf.Write(bytes.Repeat([]byte{0xFF}, n))
	return b
}

// Garbage appends n bytes of non-erased junk with no magic inside.
func (b *imageBuilder) Garbage(n int) *imageBuilder {
	for i := 0; i < n; i++ {
		b.buf.WriteByte(byte(0x20 + i%7))
	}
	return b
}

// Raw appends arbitrary bytes unchanged.
func (b *imageBuilder) Raw(p []byte) *imageBuilder {
	b.buf.Write(p)
	return b
}

// Inode appends a complete inode-data node. Dsize and Isize default to
// len(payload) and offset+len(payload) when zero, which fits the common
// uncompressed single-extent case.
type inodeSpec struct {
	Ino     uint32
	Version uint32
	Mode    uint32
	UID     uint16
	GID     uint16
	Isize   uint32
	Mtime   uint32
	Offset  uint32
	Dsize   uint32
	Compr   uint8
	Payload []byte

	// Optional corruption knobs.
	FlipHdrCRC  bool
	FlipNodeCRC bool
	FlipDataCRC bool
	TotlenLie   uint32 // overrides totlen when nonzero
}

func (b *imageBuilder) Inode(spec inodeSpec) *imageBuilder {
	if spec.Dsize == 0 {
		spec.Dsize = uint32(len(spec.Payload))
	}
	if spec.Isize == 0 {
		spec.Isize = spec.Offset + spec.Dsize
	}
	if spec.Mode == 0 {
		spec.Mode = 0o100644
	}

	totlen := uint32(types.InodeNodeSize + len(spec.Payload))
	node := make([]byte, totlen)
	o := b.order
	o.PutUint16(node[0:], types.Magic)
	o.PutUint16(node[2:], types.NodetypeInode)
	if spec.TotlenLie != 0 {
		o.PutUint32(node[4:], spec.TotlenLie)
	} else {
		o.PutUint32(node[4:], totlen)
	}
	o.PutUint32(node[8:], Crc32(node[:8]))
	o.PutUint32(node[12:], spec.Ino)
	o.PutUint32(node[16:], spec.Version)
	o.PutUint32(node[20:], spec.Mode)
	o.PutUint16(node[24:], spec.UID)
	o.PutUint16(node[26:], spec.GID)
	o.PutUint32(node[28:], spec.Isize)
	o.PutUint32(node[32:], spec.Mtime) // atime
	o.PutUint32(node[36:], spec.Mtime)
	o.PutUint32(node[40:], spec.Mtime) // ctime
	o.PutUint32(node[44:], spec.Offset)
	o.PutUint32(node[48:], uint32(len(spec.Payload)))
	o.PutUint32(node[52:], spec.Dsize)
	node[56] = spec.Compr
	node[57] = spec.Compr // usercompr
	o.PutUint32(node[60:], Crc32(spec.Payload))
	o.PutUint32(node[64:], Crc32(node[:types.InodeNodeSize-8]))
	copy(node[types.InodeNodeSize:], spec.Payload)

	if spec.FlipHdrCRC {
		node[8] ^= 0x01
	}
	if spec.FlipNodeCRC {
		node[64] ^= 0x01
	}
	if spec.FlipDataCRC {
		node[60] ^= 0x01
	}

	b.buf.Write(node)
	b.pad(totlen)
	return b
}

type direntSpec struct {
	Pino    uint32
	Version uint32
	Ino     uint32
	Type    uint8
	Name    string

	FlipNameCRC bool
}

func (b *imageBuilder) Dirent(spec direntSpec) *imageBuilder {
	if spec.Type == 0 {
		spec.Type = types.DTReg
	}
	name := []byte(spec.Name)
	totlen := uint32(types.DirentNodeSize + len(name))
	node := make([]byte, totlen)
	o := b.order
	o.PutUint16(node[0:], types.Magic)
	o.PutUint16(node[2:], types.NodetypeDirent)
	o.PutUint32(node[4:], totlen)
	o.PutUint32(node[8:], Crc32(node[:8]))
	o.PutUint32(node[12:], spec.Pino)
	o.PutUint32(node[16:], spec.Version)
	o.PutUint32(node[20:], spec.Ino)
	o.PutUint32(node[24:], 0) // mctime
	node[28] = uint8(len(name))
	node[29] = spec.Type
	o.PutUint32(node[32:], Crc32(node[:types.DirentNodeSize-8]))
	o.PutUint32(node[36:], Crc32(name))
	copy(node[types.DirentNodeSize:], name)

	if spec.FlipNameCRC {
		node[36] ^= 0x01
	}

	b.buf.Write(node)
	b.pad(totlen)
	return b
}

// Cleanmarker appends a bookkeeping node the scanner should skip.
func (b *imageBuilder) Cleanmarker() *imageBuilder {
	node := make([]byte, types.HeaderSize)
	o := b.order
	o.PutUint16(node[0:], types.Magic)
	o.PutUint16(node[2:], types.NodetypeCleanmarker)
	o.PutUint32(node[4:], types.HeaderSize)
	o.PutUint32(node[8:], Crc32(node[:8]))
	b.buf.Write(node)
	return b
}

func (b *imageBuilder) pad(totlen uint32) {
	if rem := totlen % types.NodeAlignment; rem != 0 {
		b.buf.Write(bytes.Repeat([]byte{0xFF}, int(types.NodeAlignment-rem)))
	}
}

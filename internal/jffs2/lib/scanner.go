package lib

import (
	"encoding/binary"
	"fmt"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

// ScanItem is one element of the scanned node sequence: exactly one of
// Inode, Dirent or Diag is set.
type ScanItem struct {
	Offset int64
	Inode  *types.InodeNode
	Dirent *types.DirentNode
	Diag   *types.Diagnostic
}

// Scanner walks a raw image buffer in a single forward pass, yielding
// parsed content nodes and diagnostics for everything it had to skip.
// A Scanner is not restartable; create a new one to scan again.
type Scanner struct {
	buf   []byte
	order binary.ByteOrder
	pos   int64
	done  bool

	// Start of the current run of unrecognized bytes, or -1. Runs are
	// coalesced into a single malformed-header diagnostic so an image
	// full of garbage does not produce one diagnostic per word.
	garbageStart int64

	queue []ScanItem
}

// NewScanner returns a Scanner over buf. The byte order is the one
// detected from the image's first magic halfword.
func NewScanner(buf []byte, order binary.ByteOrder) *Scanner {
	return &Scanner{buf: buf, order: order, garbageStart: -1}
}

// Next returns the next scanned item. It reports false once the image is
// exhausted.
func (s *Scanner) Next() (ScanItem, bool) {
	for len(s.queue) == 0 && !s.done {
		s.step()
	}
	if len(s.queue) > 0 {
		item := s.queue[0]
		s.queue = s.queue[1:]
		return item, true
	}
	return ScanItem{}, false
}

// step advances the cursor by one node or one alignment unit, appending
// any resulting items to the queue.
func (s *Scanner) step() {
	if s.pos+types.HeaderSize > int64(len(s.buf)) {
		// Whatever trails here is smaller than a header; an erased
		// tail is normal, anything else was already part of a run.
		s.flushGarbage(min(s.pos, int64(len(s.buf))))
		s.done = true
		return
	}

	hdr := s.buf[s.pos:]
	if s.order.Uint16(hdr) != types.Magic {
		s.skipWord()
		return
	}

	nodetype := s.order.Uint16(hdr[2:])
	totlen := s.order.Uint32(hdr[4:])
	hdrCRC := s.order.Uint32(hdr[8:])
	if Crc32(hdr[:8]) != hdrCRC || totlen < types.HeaderSize {
		// A stray magic halfword inside erased garbage or node data.
		s.skipWord()
		return
	}

	// From here the header is trusted: close any pending garbage run.
	s.flushGarbage(s.pos)

	end := s.pos + int64(totlen)
	if end > int64(len(s.buf)) {
		s.emitDiag(s.pos, int64(len(s.buf))-s.pos, types.DiagTruncatedImage,
			fmt.Sprintf("node claims %d bytes but only %d remain", totlen, int64(len(s.buf))-s.pos))
		s.done = true
		return
	}

	node := s.buf[s.pos:end]
	switch nodetype {
	case types.NodetypeInode:
		s.parseInode(node)
	case types.NodetypeDirent:
		s.parseDirent(node)
	default:
		// Cleanmarkers, padding, summaries and anything newer are
		// valid log records with nothing to reconstruct from.
	}

	s.pos += int64(pad(totlen))
}

// skipWord advances past one alignment unit of non-node bytes. Bulk-erased
// fill (all-0xFF or all-0x00) is expected between erase blocks and closes
// any open garbage run; anything else opens or extends one.
func (s *Scanner) skipWord() {
	erased := true
	limit := s.pos + types.NodeAlignment
	if limit > int64(len(s.buf)) {
		limit = int64(len(s.buf))
	}
	for _, b := range s.buf[s.pos:limit] {
		if b != 0xFF && b != 0x00 {
			erased = false
			break
		}
	}
	if erased {
		s.flushGarbage(s.pos)
	} else if s.garbageStart < 0 {
		s.garbageStart = s.pos
	}
	s.pos += types.NodeAlignment
}

func (s *Scanner) flushGarbage(end int64) {
	if s.garbageStart < 0 {
		return
	}
	s.emitDiag(s.garbageStart, end-s.garbageStart, types.DiagMalformedHeader,
		fmt.Sprintf("%d bytes of unrecognized data", end-s.garbageStart))
	s.garbageStart = -1
}

func (s *Scanner) emitDiag(off, length int64, kind types.DiagKind, detail string) {
	s.queue = append(s.queue, ScanItem{Offset: off, Diag: &types.Diagnostic{
		Offset: off,
		Length: length,
		Kind:   kind,
		Detail: detail,
	}})
}

// parseInode validates and parses an inode-data node. node spans the full
// totlen bytes, header included.
func (s *Scanner) parseInode(node []byte) {
	if len(node) < types.InodeNodeSize {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("inode node of %d bytes is shorter than the raw inode", len(node)))
		return
	}
	o := s.order
	in := &types.InodeNode{
		Ino:     o.Uint32(node[12:]),
		Version: o.Uint32(node[16:]),
		Mode:    o.Uint32(node[20:]),
		UID:     o.Uint16(node[24:]),
		GID:     o.Uint16(node[26:]),
		Isize:   o.Uint32(node[28:]),
		Atime:   o.Uint32(node[32:]),
		Mtime:   o.Uint32(node[36:]),
		Ctime:   o.Uint32(node[40:]),
		Offset:  o.Uint32(node[44:]),
		Csize:   o.Uint32(node[48:]),
		Dsize:   o.Uint32(node[52:]),
		Compr:   node[56],
		DataCRC: o.Uint32(node[60:]),
		NodeCRC: o.Uint32(node[64:]),
	}
	// node_crc covers the raw inode up to, but not including, the two
	// trailing CRC fields.
	if Crc32(node[:types.InodeNodeSize-8]) != in.NodeCRC {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("inode %d v%d: node CRC mismatch", in.Ino, in.Version))
		return
	}
	if types.InodeNodeSize+int(in.Csize) > len(node) {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("inode %d v%d: payload of %d bytes overruns the node", in.Ino, in.Version, in.Csize))
		return
	}
	in.Data = node[types.InodeNodeSize : types.InodeNodeSize+int(in.Csize)]
	if Crc32(in.Data) != in.DataCRC {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("inode %d v%d: data CRC mismatch", in.Ino, in.Version))
		return
	}
	s.queue = append(s.queue, ScanItem{Offset: s.pos, Inode: in})
}

// parseDirent validates and parses a directory-entry node.
func (s *Scanner) parseDirent(node []byte) {
	if len(node) < types.DirentNodeSize {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("dirent node of %d bytes is shorter than the raw dirent", len(node)))
		return
	}
	o := s.order
	de := &types.DirentNode{
		Pino:    o.Uint32(node[12:]),
		Version: o.Uint32(node[16:]),
		Ino:     o.Uint32(node[20:]),
		Mctime:  o.Uint32(node[24:]),
		Nsize:   node[28],
		Type:    node[29],
		NodeCRC: o.Uint32(node[32:]),
		NameCRC: o.Uint32(node[36:]),
	}
	if Crc32(node[:types.DirentNodeSize-8]) != de.NodeCRC {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("dirent under %d v%d: node CRC mismatch", de.Pino, de.Version))
		return
	}
	if types.DirentNodeSize+int(de.Nsize) > len(node) {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("dirent under %d v%d: name of %d bytes overruns the node", de.Pino, de.Version, de.Nsize))
		return
	}
	name := node[types.DirentNodeSize : types.DirentNodeSize+int(de.Nsize)]
	if Crc32(name) != de.NameCRC {
		s.emitDiag(s.pos, int64(len(node)), types.DiagCrcMismatch,
			fmt.Sprintf("dirent under %d v%d: name CRC mismatch", de.Pino, de.Version))
		return
	}
	de.Name = string(trimNul(name))
	s.queue = append(s.queue, ScanItem{Offset: s.pos, Dirent: de})
}

func trimNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

func pad(n uint32) uint32 {
	if rem := n % types.NodeAlignment; rem != 0 {
		return n + types.NodeAlignment - rem
	}
	return n
}

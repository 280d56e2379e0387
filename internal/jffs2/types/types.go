// Package types holds the on-flash constants and plain data structs shared
// across the jffs2 packages.
package types

import "time"

// Magic is the halfword every valid node starts with. Reading it as
// little-endian yields 0x1985 on little-endian images and 0x8519 on
// big-endian ones, which is how the byte order of an image is detected.
const Magic = 0x1985

// Node types. DIRENT and INODE carry filesystem content; the others are
// bookkeeping records that are validated and skipped by length.
const (
	NodetypeDirent      = 0xE001
	NodetypeInode       = 0xE002
	NodetypeCleanmarker = 0x2003
	NodetypePadding     = 0x2004
	NodetypeSummary     = 0x2006
)

// Compression tags carried in the compr byte of an inode-data node.
const (
	ComprNone      = 0x00
	ComprZero      = 0x01
	ComprRtime     = 0x02
	ComprRubinMIPS = 0x03
	ComprCopy      = 0x04
	ComprDynrubin  = 0x05
	ComprZlib      = 0x06
	ComprLZO       = 0x07
	ComprLZMA      = 0x08
)

// Dirent entry types (a subset of the POSIX d_type values).
const (
	DTDir = 4
	DTReg = 8
	DTLnk = 10
)

// RootIno is the well-known inode number of the filesystem root.
const RootIno = 1

// Fixed sizes of the on-flash records, in bytes. Nodes are written at
// 4-byte alignment; totlen is padded up to it when advancing the cursor.
const (
	HeaderSize     = 12
	InodeNodeSize  = 68 // header + 56-byte raw inode, payload follows
	DirentNodeSize = 40 // header + 28-byte raw dirent, name follows
	NodeAlignment  = 4
)

// InodeNode is one parsed inode-data node: file metadata plus one
// (possibly compressed) extent of file content.
type InodeNode struct {
	Ino     uint32
	Version uint32
	Mode    uint32
	UID     uint16
	GID     uint16
	Isize   uint32
	Atime   uint32
	Mtime   uint32
	Ctime   uint32
	Offset  uint32 // byte offset of this extent within the file
	Csize   uint32 // compressed payload length
	Dsize   uint32 // decompressed extent length
	Compr   uint8
	DataCRC uint32
	NodeCRC uint32
	Data    []byte // csize payload bytes, aliasing the image buffer
}

// DirentNode is one parsed directory-entry node: a versioned binding of a
// name under a parent inode to a target inode. Ino 0 records a deletion.
type DirentNode struct {
	Pino    uint32
	Version uint32
	Ino     uint32
	Mctime  uint32
	Nsize   uint8
	Type    uint8
	NodeCRC uint32
	NameCRC uint32
	Name    string
}

// DiagKind classifies a recoverable problem found while reading an image.
type DiagKind string

const (
	DiagMalformedHeader DiagKind = "malformed-header"
	DiagCrcMismatch     DiagKind = "crc-mismatch"
	DiagTruncatedImage  DiagKind = "truncated-image"
	DiagDanglingRef     DiagKind = "dangling-reference"
	DiagBadName         DiagKind = "bad-name"
)

// Diagnostic records a recoverable problem. Diagnostics accompany results
// rather than aborting the scan.
type Diagnostic struct {
	Offset int64
	Length int64
	Kind   DiagKind
	Detail string
}

// Entry is one resolved name in the reconstructed tree, as returned by
// listing. Paths are slash-separated and relative to the image root.
type Entry struct {
	Path      string
	Ino       uint32
	Type      uint8
	Mode      uint32
	UID       uint16
	GID       uint16
	Size      int64
	ModTime   time.Time
	Target    string // symlink target, empty otherwise
	Available bool   // false when the entry's data cannot be recovered
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Type == DTDir }

// IsSymlink reports whether the entry is a symbolic link.
func (e Entry) IsSymlink() bool { return e.Type == DTLnk }

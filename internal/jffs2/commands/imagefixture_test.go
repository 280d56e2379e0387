package commands

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/lib"
	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

// fixture builds little-endian image bytes for command tests.
type fixture struct {
	buf bytes.Buffer
}

func (f *fixture) pad(totlen int) {
	if rem := totlen % types.NodeAlignment; rem != 0 {
		f.buf.Write(bytes.Repeat([]byte{0xFF}, types.NodeAlignment-rem))
	}
}

func (f *fixture) inode(ino, version, mode, mtime uint32, payload []byte) *fixture {
	return f.inodeCompr(ino, version, mode, mtime, types.ComprNone, payload)
}

// inodeCompr writes an inode node with an arbitrary compression tag. The
// CRCs cover the stored payload, so nodes with undecodable tags still
// pass the scan.
func (f *fixture) inodeCompr(ino, version, mode, mtime uint32, compr uint8, payload []byte) *fixture {
	totlen := types.InodeNodeSize + len(payload)
	node := make([]byte, totlen)
	le := binary.LittleEndian
	le.PutUint16(node[0:], types.Magic)
	le.PutUint16(node[2:], types.NodetypeInode)
	le.PutUint32(node[4:], uint32(totlen))
	le.PutUint32(node[8:], lib.Crc32(node[:8]))
	le.PutUint32(node[12:], ino)
	le.PutUint32(node[16:], version)
	le.PutUint32(node[20:], mode)
	le.PutUint32(node[28:], uint32(len(payload))) // isize
	le.PutUint32(node[32:], mtime)                // atime
	le.PutUint32(node[36:], mtime)
	le.PutUint32(node[40:], mtime) // ctime
	le.PutUint32(node[48:], uint32(len(payload)))
	le.PutUint32(node[52:], uint32(len(payload)))
	node[56] = compr
	le.PutUint32(node[60:], lib.Crc32(payload))
	le.PutUint32(node[64:], lib.Crc32(node[:types.InodeNodeSize-8]))
	copy(node[types.InodeNodeSize:], payload)
	f.buf.Write(node)
	f.pad(totlen)
	return f
}

func (f *fixture) dirent(pino, version, ino uint32, typ uint8, name string) *fixture {
	totlen := types.DirentNodeSize + len(name)
	node := make([]byte, totlen)
	le := binary.LittleEndian
	le.PutUint16(node[0:], types.Magic)
	le.PutUint16(node[2:], types.NodetypeDirent)
	le.PutUint32(node[4:], uint32(totlen))
	le.PutUint32(node[8:], lib.Crc32(node[:8]))
	le.PutUint32(node[12:], pino)
	le.PutUint32(node[16:], version)
	le.PutUint32(node[20:], ino)
	node[28] = uint8(len(name))
	node[29] = typ
	le.PutUint32(node[32:], lib.Crc32(node[:types.DirentNodeSize-8]))
	le.PutUint32(node[36:], lib.Crc32([]byte(name)))
	copy(node[types.DirentNodeSize:], name)
	f.buf.Write(node)
	f.pad(totlen)
	return f
}

func (f *fixture) garbage(n int) *fixture {
	for i := 0; i < n; i++ {
		f.buf.WriteByte(byte('a' + i%5))
	}
	return f
}

func (f *fixture) write(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fixture.jffs2")
	require.NoError(t, os.WriteFile(p, f.buf.Bytes(), 0644))
	return p
}

const fixtureMtime = 1600000000

// sampleImage is the filesystem most command tests run against:
//
//	hello.txt  "hello world\n", mode 0644
//	run.sh     "#!/bin/sh\n",  mode 0755
//	sub/       directory
//	sub/inner.txt
//	link       symlink -> hello.txt
//	debug.log  a file the exclude tests filter out
//	gone.txt   created then deleted
func sampleImage(t *testing.T) string {
	t.Helper()
	f := &fixture{}
	f.inode(2, 1, 0o100644, fixtureMtime, []byte("hello world\n")).
		dirent(types.RootIno, 1, 2, types.DTReg, "hello.txt").
		inode(3, 1, 0o100755, fixtureMtime, []byte("#!/bin/sh\n")).
		dirent(types.RootIno, 2, 3, types.DTReg, "run.sh").
		inode(4, 1, 0o40755, fixtureMtime, nil).
		dirent(types.RootIno, 3, 4, types.DTDir, "sub").
		inode(5, 1, 0o100644, fixtureMtime, []byte("inner\n")).
		dirent(4, 1, 5, types.DTReg, "inner.txt").
		inode(6, 1, 0o120777, fixtureMtime, []byte("hello.txt")).
		dirent(types.RootIno, 4, 6, types.DTLnk, "link").
		inode(7, 1, 0o100644, fixtureMtime, []byte("log line\n")).
		dirent(types.RootIno, 5, 7, types.DTReg, "debug.log").
		inode(8, 1, 0o100644, fixtureMtime, []byte("bye\n")).
		dirent(types.RootIno, 6, 8, types.DTReg, "gone.txt").
		dirent(types.RootIno, 7, 0, types.DTReg, "gone.txt")
	return f.write(t)
}

// corruptImage starts with a valid node so Open succeeds, then a garbage
// run that produces a diagnostic.
func corruptImage(t *testing.T) string {
	t.Helper()
	f := &fixture{}
	f.inode(2, 1, 0o100644, fixtureMtime, []byte("data")).
		dirent(types.RootIno, 1, 2, types.DTReg, "data.bin").
		garbage(64)
	return f.write(t)
}

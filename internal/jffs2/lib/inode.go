package lib

import (
	"fmt"
	"sort"
	"time"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/compr"
	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

// extent maps [off, off+length) of the file onto a slice of one node's
// decompressed page, starting skip bytes into it.
type extent struct {
	off    uint32
	skip   uint32
	length uint32
	node   *types.InodeNode
}

// File is the reconstructed state of one inode: the highest-version
// metadata and a sorted, non-overlapping extent map of its content.
// It is immutable once BuildFiles returns.
type File struct {
	Ino     uint32
	Latest  *types.InodeNode
	extents []extent
}

// BuildFiles groups accepted inode-data nodes by inode number and replays
// each group in ascending version order, so that for overlapping writes
// the highest version owns the overlapped bytes while lower versions keep
// the gaps it does not cover.
func BuildFiles(nodes []*types.InodeNode) map[uint32]*File {
	byIno := make(map[uint32][]*types.InodeNode)
	for _, n := range nodes {
		byIno[n.Ino] = append(byIno[n.Ino], n)
	}

	files := make(map[uint32]*File, len(byIno))
	for ino, group := range byIno {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Version < group[j].Version
		})
		f := &File{Ino: ino}
		for _, n := range group {
			f.paint(n)
			f.Latest = n
		}
		files[ino] = f
	}
	return files
}

// paint overlays n's byte range onto the extent map, trimming earlier
// extents to exactly the sub-ranges n does not cover.
func (f *File) paint(n *types.InodeNode) {
	if n.Dsize == 0 {
		return // metadata-only write (truncation, chmod...)
	}
	start := n.Offset
	end := n.Offset + n.Dsize

	var out []extent
	for _, e := range f.extents {
		es, ee := e.off, e.off+e.length
		if ee <= start || es >= end {
			out = append(out, e)
			continue
		}
		if es < start {
			out = append(out, extent{off: es, skip: e.skip, length: start - es, node: e.node})
		}
		if ee > end {
			out = append(out, extent{off: end, skip: e.skip + (end - es), length: ee - end, node: e.node})
		}
	}
	out = append(out, extent{off: start, length: n.Dsize, node: n})
	sort.Slice(out, func(i, j int) bool { return out[i].off < out[j].off })
	f.extents = out
}

// Size is the file size claimed by the highest-version node. Later
// metadata supersedes earlier, so truncations shrink the file even when
// old extents still cover the cut range.
func (f *File) Size() int64 {
	if f.Latest == nil {
		return 0
	}
	return int64(f.Latest.Isize)
}

// Mode returns the file mode bits of the highest-version node.
func (f *File) Mode() uint32 {
	if f.Latest == nil {
		return 0
	}
	return f.Latest.Mode
}

// ModTime returns the modification time of the highest-version node.
func (f *File) ModTime() time.Time {
	if f.Latest == nil {
		return time.Time{}
	}
	return time.Unix(int64(f.Latest.Mtime), 0)
}

// Content materializes the file's bytes. Ranges no extent covers read as
// zeros. Each owning node is decoded at most once per call; pages are not
// retained afterwards, so concurrent calls never share state.
func (f *File) Content() ([]byte, error) {
	size := f.Size()
	buf := make([]byte, size)
	pages := make(map[*types.InodeNode][]byte)
	for _, e := range f.extents {
		if int64(e.off) >= size {
			continue
		}
		page, ok := pages[e.node]
		if !ok {
			var err error
			page, err = compr.Decode(e.node.Compr, e.node.Data, int(e.node.Dsize))
			if err != nil {
				return nil, fmt.Errorf("inode %d v%d at offset %d: %w",
					e.node.Ino, e.node.Version, e.node.Offset, err)
			}
			pages[e.node] = page
		}
		length := int64(e.length)
		if int64(e.off)+length > size {
			length = size - int64(e.off)
		}
		copy(buf[e.off:], page[e.skip:int64(e.skip)+length])
	}
	return buf, nil
}

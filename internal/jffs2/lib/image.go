package lib

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

// Image is the reconstructed state of one flash image: per-inode content
// maps, the resolved directory tree and the diagnostics gathered along
// the way. It is immutable once Open returns; List and Walk only read it.
type Image struct {
	order    binary.ByteOrder
	files    map[uint32]*File
	children map[uint32][]*types.DirentNode
	diags    []types.Diagnostic
}

// Open reads the image file, scans every node in one forward pass and
// reconstructs the final filesystem state. Recoverable problems become
// diagnostics on the returned Image; Open fails only when the buffer
// cannot be interpreted as a JFFS2 image at all.
func Open(imagePath string) (*Image, error) {
	buf, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("could not read image: %w", err)
	}
	order, err := detectByteOrder(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagePath, err)
	}

	img := &Image{order: order}
	var inodes []*types.InodeNode
	var dirents []*types.DirentNode

	scanner := NewScanner(buf, order)
	for {
		item, ok := scanner.Next()
		if !ok {
			break
		}
		switch {
		case item.Inode != nil:
			inodes = append(inodes, item.Inode)
		case item.Dirent != nil:
			dirents = append(dirents, item.Dirent)
		case item.Diag != nil:
			img.diags = append(img.diags, *item.Diag)
		}
	}

	img.files = BuildFiles(inodes)
	img.buildTree(dirents)
	return img, nil
}

// detectByteOrder sniffs the image byte order from the first magic
// halfword, as written by the device that produced the image.
func detectByteOrder(buf []byte) (binary.ByteOrder, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("image of %d bytes is too small", len(buf))
	}
	switch binary.LittleEndian.Uint16(buf) {
	case types.Magic:
		return binary.LittleEndian, nil
	case swap16(types.Magic):
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("no JFFS2 magic at the start of the image")
}

func swap16(v uint16) uint16 { return v<<8 | v>>8 }

// buildTree resolves dirents into per-parent child lists, dropping
// tombstones and unsafe names and flagging dangling references.
func (img *Image) buildTree(dirents []*types.DirentNode) {
	img.children = make(map[uint32][]*types.DirentNode)
	for _, de := range ResolveDirents(dirents) {
		if de.Ino == 0 {
			continue // deleted name
		}
		if !safeName(de.Name) {
			img.diags = append(img.diags, types.Diagnostic{
				Kind:   types.DiagBadName,
				Detail: fmt.Sprintf("entry %q under inode %d has an unusable name", de.Name, de.Pino),
			})
			continue
		}
		if de.Type != types.DTDir {
			if _, ok := img.files[de.Ino]; !ok {
				// Keep the entry: the tree remains informative even
				// when the data nodes are gone.
				img.diags = append(img.diags, types.Diagnostic{
					Kind:   types.DiagDanglingRef,
					Detail: fmt.Sprintf("entry %q points to inode %d which has no data nodes", de.Name, de.Ino),
				})
			}
		}
		img.children[de.Pino] = append(img.children[de.Pino], de)
	}
	for _, list := range img.children {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
}

// safeName rejects names that cannot be materialized under an output
// root. A hostile or corrupted image must not escape it.
func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsRune(name, '/')
}

// File returns the reconstructed content map for an inode number.
func (img *Image) File(ino uint32) (*File, bool) {
	f, ok := img.files[ino]
	return f, ok
}

// Diagnostics returns everything recoverable that went wrong while
// reading the image, in scan order.
func (img *Image) Diagnostics() []types.Diagnostic {
	return img.diags
}

// Walk visits every resolved entry depth-first, parents before children,
// siblings in name order. Traversal is keyed by inode number from the
// root down, so directory cycles in a corrupted image terminate at the
// visited check.
func (img *Image) Walk(fn func(e types.Entry) error) error {
	visited := map[uint32]bool{types.RootIno: true}
	return img.walk(types.RootIno, "", visited, fn)
}

func (img *Image) walk(pino uint32, prefix string, visited map[uint32]bool, fn func(e types.Entry) error) error {
	for _, de := range img.children[pino] {
		entry := img.entryFor(de, path.Join(prefix, de.Name))
		if err := fn(entry); err != nil {
			return err
		}
		if de.Type == types.DTDir && !visited[de.Ino] {
			visited[de.Ino] = true
			if err := img.walk(de.Ino, entry.Path, visited, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// entryFor combines a resolved dirent with its target inode's metadata.
func (img *Image) entryFor(de *types.DirentNode, entryPath string) types.Entry {
	entry := types.Entry{
		Path: entryPath,
		Ino:  de.Ino,
		Type: de.Type,
	}
	f, ok := img.files[de.Ino]
	if !ok {
		// Dangling reference; directories without inode nodes are
		// still traversable, files have nothing to recover.
		entry.Available = de.Type == types.DTDir
		return entry
	}
	entry.Available = true
	entry.Mode = f.Mode()
	entry.Size = f.Size()
	entry.ModTime = f.ModTime()
	if f.Latest != nil {
		entry.UID = f.Latest.UID
		entry.GID = f.Latest.GID
	}
	if de.Type == types.DTLnk {
		target, err := f.Content()
		if err != nil {
			entry.Available = false
		} else {
			entry.Target = string(target)
		}
	}
	return entry
}

// List returns all resolved entries in walk order. It is derived fresh
// from the immutable tree on every call.
func (img *Image) List() []types.Entry {
	var entries []types.Entry
	_ = img.Walk(func(e types.Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries
}

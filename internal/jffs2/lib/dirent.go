package lib

import "github.com/gingerrexayers/jffs2-go/internal/jffs2/types"

// direntKey identifies a directory entry by its (parent inode, name)
// pair. The literal name is part of the key, so two names whose CRCs
// collide can never merge.
type direntKey struct {
	pino uint32
	name string
}

// ResolveDirents reduces all accepted dirent nodes to the final binding
// per (parent, name): the one with the highest version. Tombstones
// (target inode 0) stay in the result so callers can tell "deleted" from
// "never existed"; tree construction skips them.
func ResolveDirents(nodes []*types.DirentNode) map[direntKey]*types.DirentNode {
	winners := make(map[direntKey]*types.DirentNode)
	for _, de := range nodes {
		key := direntKey{pino: de.Pino, name: de.Name}
		if cur, ok := winners[key]; ok && cur.Version >= de.Version {
			continue
		}
		winners[key] = de
	}
	return winners
}

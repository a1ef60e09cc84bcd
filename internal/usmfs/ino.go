package usmfs

import (
	"hash/fnv"
)

// inoFromString derives a stable inode number from a path-like key, so the
// same logical track gets the same inode across Lookup calls.
func inoFromString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Package lib contains the core, reusable services for the jffs2 reader.
package lib

import "hash/crc32"

// Crc32 computes the JFFS2 flavor of CRC-32: the standard IEEE polynomial
// run with an initial register of zero and no final inversion (the MTD
// convention), unlike the conditioned value produced by crc32.ChecksumIEEE.
func Crc32(data []byte) uint32 {
	return crc32.Update(0xFFFFFFFF, crc32.IEEETable, data) ^ 0xFFFFFFFF
}

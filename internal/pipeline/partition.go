package pipeline

import (
	"encoding/binary"

	"github.com/twmb/murmur3"
)

// bucketFor assigns a client to one of n partitions:
//
//	bucket_N(x) = (murmur3_x86_32(little_endian_64(x)) & Integer.MAX_VALUE) % N
//
// Hashing the id as a little-endian 64-bit value keeps the assignment
// stable across runs, platforms and future id widening.
func bucketFor(client uint16, n int) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(client))
	hash := murmur3.Sum32(buf[:])
	return int(hash&0x7FFFFFFF) % n
}

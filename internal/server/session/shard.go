package session

import "hash/fnv"

const shardCount = 32

func shardOf(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}

func shardOfID(id int64) uint32 {
	u := uint64(id)
	// FNV-1a over the eight bytes of id.
	h := uint32(2166136261)
	for i := 0; i < 8; i++ {
		h ^= uint32(byte(u >> (8 * i)))
		h *= 16777619
	}
	return h % shardCount
}

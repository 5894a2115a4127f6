// Package correlation provides a fixed-capacity cache that associates data
// observed in one asynchronous event with a later event carrying the same key.
//
// Eviction is positional FIFO: the cache is a ring of N slots and each new key
// takes the next slot, dropping whatever key occupied it. It is not an LRU;
// reading a key never extends its life.
//
// A cache may mirror its entries into a Store under a namespace. New replays
// the namespace before returning, so a restarted process sees the entries it
// had written. Writes to the store happen on a background goroutine and never
// affect the in-memory state, which stays authoritative.
package correlation

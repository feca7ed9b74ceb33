// Package cache keeps synthesized speech clips so that repeated sentences
// are not synthesized twice: a memory LRU in front of a zstd compressed
// disk store that survives restarts.
package cache

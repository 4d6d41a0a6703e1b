// Package inmemory provides a concurrency-safe, map-backed implementation of
// [llm.Memory]. Sessions live as long as the process; use the kv package for
// durable storage.
package inmemory

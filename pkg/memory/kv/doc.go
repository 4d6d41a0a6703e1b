// Package kv implements llm.Memory on top of a plain key-value Store.
//
// Each session is kept as a single JSON document under the key
// "conversation:{user}:{session}". Concrete stores live in the redisstore,
// pgstore and sqlitestore subpackages.
package kv

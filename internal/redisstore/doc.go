// Package redisstore keeps entries in Redis.
//
// Layout, under a configurable key prefix (default "tead:"):
//
//	<prefix>entries            hash: entry ID -> entry JSON
//	<prefix>targets            set of target names
//	<prefix>target:<target>    sorted set of entry IDs scored by timestamp
//
// Several processes may record into one Redis concurrently. An entry is
// written once; a second Persist with the same ID is a no-op.
package redisstore

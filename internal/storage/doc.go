// Package storage persists named JSON snapshots.
//
// Every durable collection in postbot (channels, scheduled posts) is one
// snapshot under one key. Drivers only move opaque bytes:
//   - "memory": process-local map, lost on exit
//   - "file": one <key>.json per snapshot under Path, written via tmp+rename
//   - "sqlite": modernc.org/sqlite database at Path
//   - "mysql", "postgres": a snapshots table reached through DSN
//   - "redis": one string key per snapshot
//
// Doc wraps a Store with a typed, mutex-guarded cache.
package storage

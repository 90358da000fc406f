// Package state keeps the engine's live resource records and persists them.
//
// The Store is the only place resource status lives. Membership is guarded by
// a store-wide lock; every record has its own lock so that commits for
// different identities proceed independently. Reloads go through Sync, which
// applies the generation rule: an unchanged spec keeps its generation, any
// change bumps it and resets the resource to OutOfSync.
//
// Snapshots are YAML documents written atomically with SaveFile and read back
// with LoadFile. Restoring a snapshot reproduces every sync state, which lets
// a restarted engine skip work that was already Synced.
package state

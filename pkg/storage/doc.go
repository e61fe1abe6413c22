// Package storage defines the EntityStore contract shared by the storage
// adapters (memory, postgres), sentinel errors, the storage-boundary write
// validation, and the guarded wrapper that is the sole approved path to the
// entity collections.
package storage

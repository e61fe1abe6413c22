// Package api defines the entity model shared by all storage adapters and
// the transport layer: the seven tenant-scoped entity kinds, the generic
// record type, record ID generation, and the API error taxonomy.
package api

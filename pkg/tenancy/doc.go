// Package tenancy enforces tenant isolation for entity operations.
//
// A Binding holds the active tenant for one unit of work (one request or one
// transaction). It is created when the unit of work starts, carried in the
// context under a private key, and cleared on every exit path before the
// underlying resource is reused. Relying on connection- or session-local
// state instead would leak bindings across pooled connections.
//
// The Guard evaluates a single equality predicate for every entity kind and
// verb: an operation proceeds only when the record's tenant matches the
// active binding. Reads are filtered transparently by the storage adapters
// so cross-tenant rows are never observable, not even as a denial.
package tenancy

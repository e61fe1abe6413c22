// Package transport exposes the guarded entity store over HTTP. It is the
// only surface domain collaborators use to reach the entity collections;
// there is no unmediated storage access.
//
// Routes follow /v1/{kind} and /v1/{kind}/{id} with the standard verbs.
// Isolation violations map to authorization or validation failures, never to
// generic server errors, so audit trails stay actionable. Cross-cutting
// middleware (request IDs, structured logging via log/slog, panic recovery)
// lives here as plain net/http wrappers.
package transport

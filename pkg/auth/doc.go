// Package auth resolves the calling tenant for each request. Identity
// resolution proper happens upstream; this package verifies the credential
// the upstream attached (API key, JWT, or trusted gateway header) and yields
// the caller-tenant binding the isolation layer requires.
//
// Authenticators vote with three outcomes (yes, no, abstain) and are
// evaluated in a chain; the middleware then activates a tenant binding for
// the request and clears it on every exit path.
package auth

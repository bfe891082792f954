package models

// Principal identifies the caller of a store operation.
// Identity is resolved upstream; the core only consumes it.
type Principal struct {
	UserID     string
	Department string // Optional; empty means no department grant applies

	// System principals (seed, ingestion, background worker) bypass permission checks.
	System bool
}

// SystemPrincipal returns a principal used by internal jobs.
func SystemPrincipal(userID string) Principal {
	return Principal{UserID: userID, System: true}
}

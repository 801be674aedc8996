// Package integration provides integration tests that verify the results
// ledger after check runs. These tests use real databases via testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

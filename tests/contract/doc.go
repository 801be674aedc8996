// Package contract runs the galley contract checks against a live deployment.
// The tests are skipped unless GALLEY_URL (or ASSIGNED_PORTS) points at one.
//
// Run with: GALLEY_URL=http://127.0.0.1:8085 BRIG_URL=http://127.0.0.1:8082 go test -tags=contract ./tests/contract/...
package contract

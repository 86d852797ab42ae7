package storage

import (
	"strings"
	"testing"
)

// The claim query is the concurrency contract of the whole matching
// pipeline, so its shape is pinned here.
func TestClaimQueryShape(t *testing.T) {
	if !strings.Contains(claimQuery, "FOR UPDATE SKIP LOCKED") {
		t.Fatal("claim query must use FOR UPDATE SKIP LOCKED so concurrent workers never block or double-claim")
	}
	if !strings.Contains(claimQuery, "match_status = 'unmatched'") {
		t.Fatal("claim query must only pick unmatched items")
	}
	if !strings.Contains(claimQuery, "ORDER BY id") {
		t.Fatal("claim query needs a stable order for deterministic batches")
	}
	if !strings.Contains(claimQuery, "LIMIT") {
		t.Fatal("claim query must be bounded")
	}
}

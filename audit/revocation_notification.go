package audit

import (
	"context"
	"time"
)

// RevocationHook builds a revocation.WithOnRevoke callback that records
// every token revocation in the audit trail.
func RevocationHook(logger *Logger) func(tokenID string, expiresAt time.Time) {
	return func(tokenID string, _ time.Time) {
		logger.TokenRevoked(context.Background(), Source{}, tokenID)
	}
}

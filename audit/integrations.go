package audit

import (
	"context"
	"time"

	"github.com/aras-services/svccore/auth/lockout"
)

// LockoutNotification adapts a Logger to lockout.Notification, so
// account-lock/unlock events reach the audit trail the moment they
// happen rather than requiring the caller to wire them up by hand.
func LockoutNotification(logger *Logger) lockout.Notification {
	return lockoutNotification{logger: logger}
}

type lockoutNotification struct {
	logger *Logger
}

func (n lockoutNotification) OnEvent(event lockout.Event) {
	source := Source{Subject: event.Identity}
	switch event.Kind {
	case lockout.EventAccountLocked:
		n.logger.AccountLocked(context.Background(), source, event.AttemptCount)
	case lockout.EventAccountUnlocked:
		n.logger.AccountUnlocked(context.Background(), source, event.Reason.String())
	}
}

// RevocationHook adapts a Logger to the func(tokenID string, expiresAt
// time.Time) signature revocation.WithOnRevoke expects, recording a
// KindAuthTokenRevoked event for every token the cache revokes.
func RevocationHook(logger *Logger) func(tokenID string, expiresAt time.Time) {
	return func(tokenID string, _ time.Time) {
		logger.TokenRevoked(context.Background(), Source{}, tokenID)
	}
}

package audit

import (
	"context"

	"github.com/aras-services/svccore/auth/lockout"
)

// LockoutNotification adapts a Logger into a lockout.Notification, so
// account-lockout lifecycle transitions land in the audit trail without
// the lockout package needing to know audit exists. Wire it in with
// lockout.WithNotification(audit.LockoutNotification(logger)).
func LockoutNotification(logger *Logger) lockout.Notification {
	return lockout.NotificationFunc(func(event lockout.Event) {
		ctx := context.Background()
		source := Source{Subject: event.Identity}

		switch event.Kind {
		case lockout.EventAccountLocked:
			logger.AccountLocked(ctx, source, event.AttemptCount)
		case lockout.EventAccountUnlocked:
			logger.AccountUnlocked(ctx, source, event.Reason.String())
		case lockout.EventFailedAttempt, lockout.EventApproachingThreshold:
			logger.LoginFailed(ctx, source, "lockout_threshold_attempt")
		}
	})
}

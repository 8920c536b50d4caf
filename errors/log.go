package errors

import "go.uber.org/zap"

// LogIfInfra writes the underlying cause of infrastructure-kind errors to
// the server log at error level. Client-facing errors (4xx taxonomy) are
// not logged here — they are expected traffic, not operational failures.
func LogIfInfra(logger *zap.Logger, err error) {
	fe, ok := err.(*Error)
	if !ok || logger == nil {
		return
	}
	if _, isInfra := genericMessages[fe.Kind]; !isInfra {
		return
	}
	logger.Error("infrastructure error",
		zap.String("kind", string(fe.Kind)),
		zap.String("message", fe.Message),
		zap.Error(fe.Cause),
	)
}

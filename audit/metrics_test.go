package audit

import (
	"context"
	"testing"
)

func TestRecordEventMetricDoesNotPanic(t *testing.T) {
	event := NewEvent(KindAuthLoginSuccess, SeverityInformational, "svc")
	recordEventMetric(context.Background(), event)
}

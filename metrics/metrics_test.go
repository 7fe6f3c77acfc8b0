package metrics

import (
	"testing"
)

// Global metrics instance (reused across enabled tests to avoid Prometheus registry conflicts)
var globalMetrics *Metrics

func init() {
	globalMetrics = New(true)
}

func TestMetricsEnabled(t *testing.T) {
	if globalMetrics == nil {
		t.Fatal("metrics should not be nil")
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := New(false)

	if m == nil {
		t.Fatal("metrics should not be nil (noop)")
	}

	// These should not panic even though they're noop
	m.RecordAPIRequest("json", "GET", "success", 0.01)
	m.RecordTokenRefresh("periodic", "success")
	m.RecordAuthRetry("success")
	m.RecordForcedLogout("refresh_rejected")
	m.SetAuthenticated(true)
}

func TestRecordAPIRequest(t *testing.T) {
	// Should not panic
	globalMetrics.RecordAPIRequest("json", "GET", "success", 0.002)
	globalMetrics.RecordAPIRequest("json", "POST", "api_error", 0.004)
	globalMetrics.RecordAPIRequest("upload", "POST", "no_response", 1.2)
}

func TestRecordTokenRefresh(t *testing.T) {
	// Should not panic
	globalMetrics.RecordTokenRefresh("periodic", "success")
	globalMetrics.RecordTokenRefresh("retry", "failure")
	globalMetrics.RecordTokenRefresh("login", "success")
}

func TestRecordAuthRetry(t *testing.T) {
	// Should not panic
	globalMetrics.RecordAuthRetry("success")
	globalMetrics.RecordAuthRetry("failure")
}

func TestRecordForcedLogout(t *testing.T) {
	// Should not panic
	globalMetrics.RecordForcedLogout("refresh_rejected")
	globalMetrics.RecordForcedLogout("identity_rejected")
}

func TestSetAuthenticated(t *testing.T) {
	// Should not panic
	globalMetrics.SetAuthenticated(true)
	globalMetrics.SetAuthenticated(false)
}

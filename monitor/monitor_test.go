package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := NewMonitor("triad")
	m.IncMatchesCreated()
	m.IncForfeits("sweeper")
	m.IncValidationFailures("NOT_YOUR_TURN")
	m.IncOnlineSessions()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"triad_matches_created_total 1",
		`triad_timeout_forfeits_total{source="sweeper"} 1`,
		`triad_validation_failures_total{code="NOT_YOUR_TURN"} 1`,
		"triad_online_sessions 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMonitorIsNoop(t *testing.T) {
	var m *Monitor
	m.IncMatchesCreated()
	m.IncMessagesReceived("SYNC")
	m.SetActiveGroups(3)
}

func TestMonitorsDoNotShareRegistry(t *testing.T) {
	a := NewMonitor("triad")
	b := NewMonitor("triad")
	a.IncMatchesCreated()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "triad_matches_created_total 1") {
		t.Error("second monitor saw the first monitor's counter")
	}
}

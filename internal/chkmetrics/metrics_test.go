package chkmetrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredSeries(t *testing.T) {
	m := New("chk_test")
	m.SetPhase("pool-a", "POOL_MBS")
	m.RecordReport("cont-bad-label", "INTERACT", false)
	m.SetDeadRanks(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{"chk_test_pool_phase", "chk_test_units_checked_total", "chk_test_dead_ranks"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

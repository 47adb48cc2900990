package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEvent(t *testing.T) {
	before := testutil.ToFloat64(WsEventErrorsTotal.WithLabelValues("message"))

	RecordEvent("message", false)
	RecordEvent("message", true)

	if got := testutil.ToFloat64(WsEventErrorsTotal.WithLabelValues("message")) - before; got != 1 {
		t.Errorf("error counter moved by %v, want 1", got)
	}
}

func TestRecordHttpStatus(t *testing.T) {
	before := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("404"))
	RecordHttpStatus(404)
	if got := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("404")) - before; got != 1 {
		t.Errorf("404 counter moved by %v, want 1", got)
	}
}

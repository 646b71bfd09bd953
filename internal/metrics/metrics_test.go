package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	okBefore := testutil.ToFloat64(Operations.WithLabelValues("test_op", "ok"))
	errBefore := testutil.ToFloat64(Operations.WithLabelValues("test_op", "error"))

	Observe("test_op", nil)
	Observe("test_op", errors.New("boom"))
	Observe("test_op", nil)

	if got := testutil.ToFloat64(Operations.WithLabelValues("test_op", "ok")) - okBefore; got != 2 {
		t.Errorf("ok delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(Operations.WithLabelValues("test_op", "error")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

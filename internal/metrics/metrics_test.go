package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlas-desktop/marketscan/internal/metrics"
)

func TestRegisterAddsEverySeriesOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestRegisterPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a second Register call against the same registry to panic")
		}
	}()
	metrics.Register(reg)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordExchange(t *testing.T) {
	before := testutil.ToFloat64(exchangeOperations.WithLabelValues("create", "ok"))
	RecordExchange("create", "ok", 3*time.Millisecond)
	after := testutil.ToFloat64(exchangeOperations.WithLabelValues("create", "ok"))

	assert.Equal(t, before+1, after)
}

func TestRecordAnomaly(t *testing.T) {
	before := testutil.ToFloat64(exchangeAnomalies.WithLabelValues("missing_point_value"))
	RecordAnomaly("missing_point_value")
	assert.Equal(t, before+1, testutil.ToFloat64(exchangeAnomalies.WithLabelValues("missing_point_value")))
}

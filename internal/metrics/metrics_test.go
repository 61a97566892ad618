package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(sessionsActive)
	SessionOpened()
	SessionOpened()
	SessionClosed("dismiss")
	assert.Equal(t, before+1, testutil.ToFloat64(sessionsActive))
	assert.GreaterOrEqual(t, testutil.ToFloat64(sessionTeardowns.WithLabelValues("dismiss")), 1.0)
}

func TestActionCounter(t *testing.T) {
	c := actionsTotal.WithLabelValues("rotation", "ok")
	before := testutil.ToFloat64(c)
	IncAction("rotation", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

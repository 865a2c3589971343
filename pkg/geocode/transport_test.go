package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransport_FractionalDefaultRateKeepsBurst(t *testing.T) {
	tr := newTransport("slow", 0.5, nil)
	assert.Equal(t, 1, tr.limiter.Burst())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.limiter.Wait(ctx))
}

func TestNewTransport_DefaultBurstFollowsRate(t *testing.T) {
	tr := newTransport("smarty", 10, nil)
	assert.Equal(t, 10, tr.limiter.Burst())
}

func TestWithRateLimit_OverridesDefault(t *testing.T) {
	tr := newTransport("census", 10, []Option{WithRateLimit(0.2)})
	assert.Equal(t, 1, tr.limiter.Burst())
}

package metrics_test

import (
	"context"
	"testing"

	"github.com/marcelsud/tymbug/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	ctx := context.Background()
	var r *metrics.Recorder

	// None of these may panic on a nil recorder
	r.WebhookReceived(ctx, "github")
	r.WebhookRejected(ctx, "github")
	r.ReplayAttempt(ctx)
	r.ReplayCompleted(ctx, "delivered")
	r.AnalysisCacheLookup(ctx, true)
	r.AnalysisFallback(ctx)

	assert.NoError(t, r.Shutdown(ctx))
}

func TestRecorderCounts(t *testing.T) {
	ctx := context.Background()

	r, err := metrics.NewRecorder()
	require.NoError(t, err)
	defer r.Shutdown(ctx)

	r.WebhookReceived(ctx, "github")
	r.WebhookRejected(ctx, "generic")
	r.ReplayAttempt(ctx)
	r.ReplayCompleted(ctx, "failed")
	r.AnalysisCacheLookup(ctx, false)
	r.AnalysisFallback(ctx)

	assert.NotNil(t, r.Handler())
}

package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnComposite(ctx, &domain.CompositeEvent{Frame: "classic", Duration: 20 * time.Millisecond})
	hooks.OnComposite(ctx, &domain.CompositeEvent{Err: errors.New("decode photo")})
	hooks.OnRecord(ctx, &domain.RecordEvent{Kind: domain.ActionDownload})
	hooks.OnRecord(ctx, &domain.RecordEvent{Kind: domain.ActionShare, Err: errors.New("down")})
	hooks.OnCounts(ctx, domain.ActionCounts{domain.ActionDownload: 12, domain.ActionShare: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Composites.WithLabelValues(observability.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Composites.WithLabelValues(observability.ResultError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CompositeDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsRecorded.WithLabelValues("download", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsRecorded.WithLabelValues("share", "error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.ActionCount.WithLabelValues("download")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActionCount.WithLabelValues("share")))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	m.Hooks().OnRecord(context.Background(), &domain.RecordEvent{Kind: domain.ActionShare})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `framecast_actions_recorded_total{kind="share",result="ok"} 1`)
}

func TestChain(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnRecord: func(context.Context, *domain.RecordEvent) { calls = append(calls, "a") },
	}
	b := domain.LifecycleHooks{
		OnRecord: func(context.Context, *domain.RecordEvent) { calls = append(calls, "b") },
		OnCounts: func(context.Context, domain.ActionCounts) { calls = append(calls, "b-counts") },
	}

	chained := observability.Chain(a, domain.LifecycleHooks{}, b)
	require.NotNil(t, chained.OnRecord)
	assert.Nil(t, chained.OnComposite)

	chained.OnRecord(context.Background(), &domain.RecordEvent{})
	chained.OnCounts(context.Background(), nil)
	assert.Equal(t, []string{"a", "b", "b-counts"}, calls)
}

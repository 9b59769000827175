package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wyfcoding/rmqindex/algorithm/rmq"
	"github.com/wyfcoding/rmqindex/config"
	"github.com/wyfcoding/rmqindex/logging"
	"github.com/wyfcoding/rmqindex/metrics"
	"github.com/wyfcoding/rmqindex/xerrors"
)

var demo = []int64{4, 1, 6, 2, 8, 0}

func newTestManager(t *testing.T, cfg config.IndexConfig) (*Manager, *metrics.IndexMetrics) {
	t.Helper()
	im := metrics.NewIndexMetrics(metrics.NewMetrics("test"))
	logger := logging.NewFromConfig(logging.Config{Service: "test", Module: "index", Level: "debug", Output: io.Discard})
	return NewManager(cfg, im, logger), im
}

func defaultIndexConfig() config.IndexConfig {
	return config.IndexConfig{MaxLength: 1 << 20, QueryConcurrency: 4}
}

func bruteMin(values []int64, i, j int) (int64, int) {
	best := i
	for k := i + 1; k <= j; k++ {
		if values[k] < values[best] {
			best = k
		}
	}
	return values[best], best
}

func TestManager_BuildAndQuery(t *testing.T) {
	m, im := newTestManager(t, defaultIndexConfig())
	ctx := context.Background()

	stats, err := m.Build(ctx, "demo", demo)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Elements)
	assert.Equal(t, 11, stats.TourLength)

	ans, err := m.Query(ctx, "demo", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, Answer{I: 1, J: 3, Value: 1, Index: 1}, ans)

	ans, err = m.Query(ctx, "demo", 2, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ans.Value)
	assert.Equal(t, 3, ans.Index)

	_, err = m.Query(ctx, "demo", 4, 6)
	require.ErrorIs(t, err, rmq.ErrOutOfRange)

	assert.InDelta(t, 1, testutil.ToFloat64(im.BuildsTotal.WithLabelValues("ok")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(im.QueriesTotal.WithLabelValues(KindRangeMin, "ok")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(im.QueriesTotal.WithLabelValues(KindRangeMin, "error")), 1e-9)
	assert.InDelta(t, 6, testutil.ToFloat64(im.SequenceLength.WithLabelValues("demo")), 1e-9)
}

func TestManager_BuildRejects(t *testing.T) {
	m, im := newTestManager(t, config.IndexConfig{MaxLength: 4, QueryConcurrency: 1})
	ctx := context.Background()

	_, err := m.Build(ctx, "", []int64{1})
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = m.Build(ctx, "long", demo)
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = m.Build(ctx, "empty", nil)
	require.ErrorIs(t, err, rmq.ErrEmptyInput)

	_, err = m.Build(ctx, "short", []int64{3, 1})
	require.NoError(t, err)
	_, err = m.Build(ctx, "short", []int64{5})
	require.ErrorIs(t, err, xerrors.ErrIndexExists)
	assert.True(t, xerrors.IsType(err, xerrors.ErrAlreadyExists))

	assert.InDelta(t, 4, testutil.ToFloat64(im.BuildsTotal.WithLabelValues("error")), 1e-9)
	assert.Equal(t, []string{"short"}, m.Names())
}

func TestManager_GetDropNames(t *testing.T) {
	m, im := newTestManager(t, defaultIndexConfig())
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		_, err := m.Build(ctx, name, demo)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, m.Names())

	r, err := m.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 6, r.Len())

	require.NoError(t, m.Drop("b"))
	assert.Equal(t, []string{"a", "c"}, m.Names())
	assert.Equal(t, 2, testutil.CollectAndCount(im.SequenceLength))

	_, err = m.Get("b")
	require.ErrorIs(t, err, xerrors.ErrIndexNotFound)
	require.ErrorIs(t, m.Drop("b"), xerrors.ErrIndexNotFound)

	ans, err := m.Query(ctx, "b", 0, 1)
	require.ErrorIs(t, err, xerrors.ErrIndexNotFound)
	assert.Equal(t, -1, ans.Index)
}

func TestManager_LCA(t *testing.T) {
	m, im := newTestManager(t, defaultIndexConfig())
	ctx := context.Background()
	_, err := m.Build(ctx, "demo", demo)
	require.NoError(t, err)

	tests := []struct {
		u, v      int
		wantPos   int
		wantValue int64
	}{
		{4, 3, 3, 2},
		{2, 3, 3, 2},
		{0, 2, 1, 1},
		{0, 4, 1, 1},
		{2, 5, 5, 0},
		{1, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.u, tt.v), func(t *testing.T) {
			ans, err := m.LCA(ctx, "demo", tt.u, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, ans.Index)
			assert.Equal(t, tt.wantValue, ans.Value)
		})
	}

	_, err = m.LCA(ctx, "demo", 0, 6)
	require.ErrorIs(t, err, rmq.ErrInvalidNode)
	_, err = m.LCA(ctx, "missing", 0, 1)
	require.ErrorIs(t, err, xerrors.ErrIndexNotFound)

	assert.InDelta(t, 2, testutil.ToFloat64(im.QueriesTotal.WithLabelValues(KindLCA, "error")), 1e-9)
}

func TestManager_QueryBatch(t *testing.T) {
	m, _ := newTestManager(t, defaultIndexConfig())
	ctx := context.Background()

	rng := rand.New(rand.NewPCG(11, 29))
	values := make([]int64, 500)
	for k := range values {
		values[k] = rng.Int64N(50)
	}
	_, err := m.Build(ctx, "rand", values)
	require.NoError(t, err)

	ranges := make([]Range, 0, 301)
	for range 300 {
		i := rng.IntN(len(values))
		j := i + rng.IntN(len(values)-i)
		ranges = append(ranges, Range{I: i, J: j})
	}
	ranges = append(ranges, Range{I: 10, J: 3})

	out, err := m.QueryBatch(ctx, "rand", ranges)
	require.NoError(t, err)
	require.Len(t, out, len(ranges))

	for k, rg := range ranges[:300] {
		wantV, wantIdx := bruteMin(values, rg.I, rg.J)
		require.NoError(t, out[k].Err)
		assert.Equal(t, rg.I, out[k].I)
		assert.Equal(t, rg.J, out[k].J)
		assert.Equal(t, wantV, out[k].Value)
		assert.Equal(t, wantIdx, out[k].Index)
	}
	last := out[len(out)-1]
	require.ErrorIs(t, last.Err, rmq.ErrOutOfRange)
	assert.Equal(t, -1, last.Index)

	_, err = m.QueryBatch(ctx, "missing", ranges)
	require.ErrorIs(t, err, xerrors.ErrIndexNotFound)
}

func TestManager_QueryBatchCanceled(t *testing.T) {
	m, _ := newTestManager(t, defaultIndexConfig())
	_, err := m.Build(context.Background(), "demo", demo)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := m.QueryBatch(ctx, "demo", []Range{{0, 5}, {1, 2}})
	require.NoError(t, err)
	for _, ans := range out {
		assert.ErrorIs(t, ans.Err, context.Canceled)
	}
}

func TestManager_Preload(t *testing.T) {
	m, _ := newTestManager(t, defaultIndexConfig())
	err := m.Preload(context.Background(), []config.PreloadConfig{
		{Name: "demo", Values: demo},
		{Name: "empty"},
	})
	require.ErrorIs(t, err, rmq.ErrEmptyInput)
	assert.Equal(t, []string{"demo"}, m.Names())
}

func newLoggedManager(t *testing.T, cfg config.IndexConfig) (*Manager, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.NewFromConfig(logging.Config{Service: "test", Module: "index", Level: "info", Output: &buf})
	return NewManager(cfg, nil, logger), &buf
}

func TestManager_PreloadLogsDuration(t *testing.T) {
	m, buf := newLoggedManager(t, defaultIndexConfig())
	require.NoError(t, m.Preload(context.Background(), []config.PreloadConfig{
		{Name: "a", Values: demo},
		{Name: "b", Values: []int64{3, 2, 1}},
	}))
	assert.Equal(t, []string{"a", "b"}, m.Names())
	assert.Contains(t, buf.String(), `"msg":"index preload finished"`)
	assert.Contains(t, buf.String(), `"items":2`)

	buf.Reset()
	require.NoError(t, m.Preload(context.Background(), nil))
	assert.Empty(t, buf.String())
}

func TestManager_SlowBuildThreshold(t *testing.T) {
	cfg := defaultIndexConfig()
	cfg.SlowBuildThreshold = time.Hour
	m, buf := newLoggedManager(t, cfg)
	ctx := context.Background()

	assert.Equal(t, time.Hour, m.SlowBuildThreshold())
	_, err := m.Build(ctx, "fast", demo)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "slow index build")

	m.SetSlowBuildThreshold(time.Nanosecond)
	_, err = m.Build(ctx, "slow", demo)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slow index build")

	buf.Reset()
	m.SetSlowBuildThreshold(0)
	_, err = m.Build(ctx, "unchecked", demo)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "slow index build")
}

func TestManager_ConcurrentBuild(t *testing.T) {
	m, _ := newTestManager(t, defaultIndexConfig())
	ctx := context.Background()

	var wg conc.WaitGroup
	errs := make([]error, 16)
	for k := range 16 {
		wg.Go(func() {
			// 一半的协程争用同一个名字。
			name := fmt.Sprintf("seq-%d", k%8)
			_, errs[k] = m.Build(ctx, name, demo)
		})
	}
	wg.Wait()

	exists := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, xerrors.ErrIndexExists)
			exists++
		}
	}
	assert.Equal(t, 8, exists)
	assert.Len(t, m.Names(), 8)
}

func TestManager_Spans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	m, _ := newTestManager(t, defaultIndexConfig())
	ctx := context.Background()
	_, err := m.Build(ctx, "demo", demo)
	require.NoError(t, err)
	_, err = m.Build(ctx, "bad", nil)
	require.Error(t, err)
	_, err = m.QueryBatch(ctx, "demo", []Range{{0, 5}})
	require.NoError(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "index.Build", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, "index.Build", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "index.QueryBatch", ended[2].Name())
}

func TestAnswer_ErrorsAreTyped(t *testing.T) {
	m, _ := newTestManager(t, defaultIndexConfig())
	_, err := m.Query(context.Background(), "nothing", 0, 0)
	e, ok := xerrors.FromError(err)
	require.True(t, ok)
	assert.Equal(t, 404101, e.Code)
	assert.False(t, errors.Is(err, xerrors.ErrIndexExists))
}

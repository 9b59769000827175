// Package index 管理一组具名、已构建的区间最小值索引，供命令行与嵌入方按名称查询。
package index

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/rmqindex/algorithm/rmq"
	"github.com/wyfcoding/rmqindex/config"
	"github.com/wyfcoding/rmqindex/logging"
	"github.com/wyfcoding/rmqindex/metrics"
	"github.com/wyfcoding/rmqindex/tracing"
	"github.com/wyfcoding/rmqindex/xerrors"
)

// 查询种类，用作指标的 kind 维度。
const (
	KindRangeMin = "range_min"
	KindLCA      = "lca"
)

// Range 是一个闭区间 [I, J]。
type Range struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Answer 是一次查询的结果。Err 非空时 Value 无意义，Index 为 -1。
type Answer struct {
	I     int   `json:"i"`
	J     int   `json:"j"`
	Value int64 `json:"value"`
	Index int   `json:"index"`
	Err   error `json:"-"`
}

// Manager 持有具名索引。索引构建后不可变，查询可并发执行。
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]*rmq.RangeMin[int64]

	cfg       config.IndexConfig
	slowBuild atomic.Int64 // 纳秒，配置热更新时修改
	metrics   *metrics.IndexMetrics
	logger    *logging.Logger
}

// NewManager 创建索引管理器。m 与 logger 可为 nil。
func NewManager(cfg config.IndexConfig, m *metrics.IndexMetrics, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.QueryConcurrency < 1 {
		cfg.QueryConcurrency = 1
	}
	mgr := &Manager{
		indexes: make(map[string]*rmq.RangeMin[int64]),
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
	mgr.slowBuild.Store(int64(cfg.SlowBuildThreshold))
	return mgr
}

// SetSlowBuildThreshold 修改慢构建告警阈值，非正值关闭告警。可与查询、构建并发调用。
func (m *Manager) SetSlowBuildThreshold(d time.Duration) {
	m.slowBuild.Store(int64(d))
}

// SlowBuildThreshold 返回当前的慢构建告警阈值。
func (m *Manager) SlowBuildThreshold() time.Duration {
	return time.Duration(m.slowBuild.Load())
}

// Build 以 name 为键构建索引并返回其规模。
func (m *Manager) Build(ctx context.Context, name string, values []int64) (stats rmq.Stats, err error) {
	ctx, span := tracing.StartSpan(ctx, "index.Build", trace.WithAttributes(
		attribute.String("index.name", name),
		attribute.Int("index.elements", len(values)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			tracing.SetError(ctx, err)
		}
		m.metrics.ObserveBuild(status, time.Since(start).Seconds())
	}()

	if name == "" {
		return rmq.Stats{}, xerrors.ErrInvalidInput.With("reason", "index name is empty")
	}
	if m.cfg.MaxLength > 0 && len(values) > m.cfg.MaxLength {
		return rmq.Stats{}, xerrors.ErrInvalidInput.
			With("length", len(values)).
			With("max_length", m.cfg.MaxLength)
	}
	if m.exists(name) {
		return rmq.Stats{}, xerrors.ErrIndexExists.With("name", name)
	}

	r, err := rmq.NewRangeMin(values)
	if err != nil {
		m.logger.ErrorContext(ctx, "index build failed", "index", name, "error", err)
		return rmq.Stats{}, err
	}

	m.mu.Lock()
	if _, ok := m.indexes[name]; ok {
		m.mu.Unlock()
		return rmq.Stats{}, xerrors.ErrIndexExists.With("name", name)
	}
	m.indexes[name] = r
	m.mu.Unlock()

	stats = r.Stats()
	m.metrics.SetIndexShape(name, stats.Elements, stats.CanonicalTables)
	tracing.AddTag(ctx, "index.canonical_tables", stats.CanonicalTables)

	elapsed := time.Since(start)
	if slow := m.SlowBuildThreshold(); slow > 0 && elapsed > slow {
		m.logger.WarnContext(ctx, "slow index build", "index", name, "elements", stats.Elements, "duration", elapsed)
	} else {
		m.logger.DebugContext(ctx, "index built", "index", name, "elements", stats.Elements,
			"block_size", stats.BlockSize, "canonical_tables", stats.CanonicalTables, "duration", elapsed)
	}
	return stats, nil
}

// Preload 并发构建配置中的预加载序列，并发度受 QueryConcurrency 限制。
// 返回第一个失败的构建错误，其余序列仍会尝试构建。
func (m *Manager) Preload(ctx context.Context, items []config.PreloadConfig) error {
	if len(items) == 0 {
		return nil
	}
	defer m.logger.LogDuration(ctx, "index preload", "items", len(items))()

	var g errgroup.Group
	g.SetLimit(m.cfg.QueryConcurrency)
	for _, item := range items {
		g.Go(func() error {
			if _, err := m.Build(ctx, item.Name, item.Values); err != nil {
				return fmt.Errorf("preload %q: %w", item.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[name]
	return ok
}

// Get 返回名为 name 的索引。
func (m *Manager) Get(name string) (*rmq.RangeMin[int64], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.indexes[name]
	if !ok {
		return nil, xerrors.ErrIndexNotFound.With("name", name)
	}
	return r, nil
}

// Drop 删除名为 name 的索引。
func (m *Manager) Drop(name string) error {
	m.mu.Lock()
	_, ok := m.indexes[name]
	delete(m.indexes, name)
	m.mu.Unlock()

	if !ok {
		return xerrors.ErrIndexNotFound.With("name", name)
	}
	m.metrics.DropIndex(name)
	return nil
}

// Names 按字典序返回所有索引名。
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.indexes))
}

// Query 返回索引 name 在 [i, j] 上的最小值及其位置。
func (m *Manager) Query(ctx context.Context, name string, i, j int) (Answer, error) {
	r, err := m.Get(name)
	if err != nil {
		m.metrics.ObserveQuery(KindRangeMin, "error")
		return Answer{I: i, J: j, Index: -1, Err: err}, err
	}
	ans := answer(r, i, j)
	m.observe(ctx, KindRangeMin, name, ans.Err)
	return ans, ans.Err
}

// LCA 返回位置 u、v 对应的笛卡尔树节点的最近公共祖先，结果以位置与值表示。
func (m *Manager) LCA(ctx context.Context, name string, u, v int) (Answer, error) {
	r, err := m.Get(name)
	if err != nil {
		m.metrics.ObserveQuery(KindLCA, "error")
		return Answer{I: u, J: v, Index: -1, Err: err}, err
	}

	id, err := r.LCA().Query(rmq.NodeID(u), rmq.NodeID(v))
	m.observe(ctx, KindLCA, name, err)
	if err != nil {
		return Answer{I: u, J: v, Index: -1, Err: err}, err
	}
	return Answer{I: u, J: v, Value: r.Tree().Value(id), Index: r.Tree().Position(id)}, nil
}

// QueryBatch 并发回答一组区间查询，结果与 ranges 一一对应。
// 单个区间的错误写入对应 Answer.Err；只有索引不存在时才返回 error。
func (m *Manager) QueryBatch(ctx context.Context, name string, ranges []Range) ([]Answer, error) {
	ctx, span := tracing.StartSpan(ctx, "index.QueryBatch", trace.WithAttributes(
		attribute.String("index.name", name),
		attribute.Int("batch.size", len(ranges)),
	))
	defer span.End()

	r, err := m.Get(name)
	if err != nil {
		tracing.SetError(ctx, err)
		m.metrics.ObserveQuery(KindRangeMin, "error")
		return nil, err
	}

	out := make([]Answer, len(ranges))
	p := pool.New().WithMaxGoroutines(m.cfg.QueryConcurrency)
	for k, rg := range ranges {
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				out[k] = Answer{I: rg.I, J: rg.J, Index: -1, Err: err}
				return
			}
			out[k] = answer(r, rg.I, rg.J)
		})
	}
	p.Wait()

	failed := 0
	for _, ans := range out {
		status := "ok"
		if ans.Err != nil {
			status = "error"
			failed++
		}
		m.metrics.ObserveQuery(KindRangeMin, status)
	}
	span.SetAttributes(attribute.Int("batch.failed", failed))
	if failed > 0 {
		m.logger.DebugContext(ctx, "batch query finished with failures", "index", name, "failed", failed, "total", len(ranges))
	}
	return out, nil
}

func answer(r *rmq.RangeMin[int64], i, j int) Answer {
	v, idx, err := r.Query(i, j)
	return Answer{I: i, J: j, Value: v, Index: idx, Err: err}
}

func (m *Manager) observe(ctx context.Context, kind, name string, err error) {
	if err != nil {
		m.metrics.ObserveQuery(kind, "error")
		m.logger.DebugContext(ctx, "index query rejected", "index", name, "kind", kind, "error", err)
		return
	}
	m.metrics.ObserveQuery(kind, "ok")
}

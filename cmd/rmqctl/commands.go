package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/rmqindex/algorithm/suffix"
	"github.com/wyfcoding/rmqindex/config"
	"github.com/wyfcoding/rmqindex/index"
	"github.com/wyfcoding/rmqindex/logging"
	"github.com/wyfcoding/rmqindex/metrics"
	"github.com/wyfcoding/rmqindex/tracing"
	"github.com/wyfcoding/rmqindex/xerrors"
)

// inputIndex 是从 --input 读取的序列在管理器中的名字。
const inputIndex = "input"

type app struct {
	configPath  string
	jsonOut     bool
	traceparent string
	input       string
	indexName   string

	conf    *config.Config
	logger  *logging.Logger
	manager *index.Manager
	cleanup []func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "rmqctl",
		Short:         "Constant-time range minimum and lowest common ancestor queries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "path to a TOML config file")
	f.BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	f.StringVar(&a.traceparent, "traceparent", "", "W3C traceparent of the calling process")
	f.StringVarP(&a.input, "input", "i", "-", "file with whitespace or comma separated integers, - for stdin")
	f.StringVar(&a.indexName, "index", "", "query a preloaded index from the config instead of --input")

	root.AddCommand(a.queryCmd(), a.lcaCmd(), a.lcpCmd(), a.statsCmd(), a.listCmd())
	return root
}

// run 初始化配置、日志、追踪与指标后执行 fn，并在返回前释放资源。
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context) error) (err error) {
	defer func() {
		for i := len(a.cleanup) - 1; i >= 0; i-- {
			if cerr := a.cleanup[i](context.Background()); cerr != nil {
				a.logger.Warn("cleanup failed", "error", cerr)
			}
		}
		a.cleanup = nil
	}()
	ctx, err := a.setup(cmd)
	if err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(ctx, "rmqctl."+cmd.Name())
	defer span.End()

	if err = fn(ctx); err != nil {
		tracing.SetError(ctx, err)
	}
	return err
}

func (a *app) setup(cmd *cobra.Command) (context.Context, error) {
	a.conf = config.Default()
	if a.configPath != "" {
		a.conf = &config.Config{}
		if err := config.Load(a.configPath, a.conf); err != nil {
			return nil, err
		}
	}

	lc := a.conf.Log.LoggingConfig("rmqctl", "cli")
	if lc.File == "" {
		lc.Output = cmd.ErrOrStderr()
	}
	a.logger = logging.NewFromConfig(lc)
	slog.SetDefault(a.logger.Logger)
	if a.conf.Log.Level == "debug" {
		config.PrintWithMask(a.conf)
	}

	if a.conf.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(a.conf.Tracing, cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, shutdown)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.traceparent != "" {
		ctx = tracing.ExtractContext(ctx, map[string]string{"traceparent": a.traceparent})
	}

	m := metrics.NewMetrics("rmqctl")
	m.RegisterBuildInfo("rmqctl", version)
	if a.conf.Metrics.Enabled {
		stop := m.ExposeHttp(a.conf.Metrics.Port, a.conf.Metrics.Path)
		a.cleanup = append(a.cleanup, func(context.Context) error { stop(); return nil })
	}

	a.manager = index.NewManager(a.conf.Index, metrics.NewIndexMetrics(m), a.logger)
	if a.configPath != "" {
		stop, err := config.Watch(a.configPath, a.applyConfig)
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, func(context.Context) error { return stop() })
	}
	if err := a.manager.Preload(ctx, a.conf.Index.Preload); err != nil {
		return nil, fmt.Errorf("preload: %w", err)
	}
	return ctx, nil
}

// applyConfig 应用热更新后的配置。日志级别已由 config.Watch 更新。
func (a *app) applyConfig(conf *config.Config) {
	a.manager.SetSlowBuildThreshold(conf.Index.SlowBuildThreshold)
	a.logger.Info("config reloaded", "slow_build_threshold", conf.Index.SlowBuildThreshold)
}

// resolveIndex 返回要查询的索引名：优先 --index，否则从 --input 读取序列并构建。
func (a *app) resolveIndex(ctx context.Context, cmd *cobra.Command) (string, error) {
	if a.indexName != "" {
		return a.indexName, nil
	}

	r, closeFn, err := a.openInput(cmd)
	if err != nil {
		return "", err
	}
	defer closeFn()

	values, err := readValues(r)
	if err != nil {
		return "", err
	}
	if _, err := a.manager.Build(ctx, inputIndex, values); err != nil {
		return "", err
	}
	return inputIndex, nil
}

func (a *app) openInput(cmd *cobra.Command) (io.Reader, func(), error) {
	if a.input == "" || a.input == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(a.input)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// readValues 读取以空白或逗号分隔的整数。
func readValues(r io.Reader) ([]int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	var values []int64
	for sc.Scan() {
		for tok := range strings.SplitSeq(sc.Text(), ",") {
			if tok == "" {
				continue
			}
			v, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return nil, xerrors.ErrInvalidInput.With("token", tok)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return values, nil
}

// parseRange 解析 "i:j" 形式的闭区间。
func parseRange(s string) (index.Range, error) {
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return index.Range{}, xerrors.ErrInvalidInput.With("range", s)
	}
	i, err := strconv.Atoi(left)
	if err != nil {
		return index.Range{}, xerrors.ErrInvalidInput.With("range", s)
	}
	j, err := strconv.Atoi(right)
	if err != nil {
		return index.Range{}, xerrors.ErrInvalidInput.With("range", s)
	}
	return index.Range{I: i, J: j}, nil
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for k, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, xerrors.ErrInvalidInput.With("argument", s)
		}
		out[k] = v
	}
	return out, nil
}

type answerView struct {
	index.Answer
	Error string `json:"error,omitempty"`
}

func view(ans index.Answer) answerView {
	v := answerView{Answer: ans}
	if ans.Err != nil {
		v.Error = ans.Err.Error()
	}
	return v
}

func (a *app) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query I:J [I:J...]",
		Short: "Answer inclusive range minimum queries over the input sequence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				ranges := make([]index.Range, len(args))
				for k, s := range args {
					rg, err := parseRange(s)
					if err != nil {
						return err
					}
					ranges[k] = rg
				}

				name, err := a.resolveIndex(ctx, cmd)
				if err != nil {
					return err
				}
				answers, err := a.manager.QueryBatch(ctx, name, ranges)
				if err != nil {
					return err
				}

				failed := 0
				views := make([]answerView, len(answers))
				for k, ans := range answers {
					views[k] = view(ans)
					if ans.Err != nil {
						failed++
					}
				}

				out := cmd.OutOrStdout()
				if a.jsonOut {
					if err := a.printJSON(out, views); err != nil {
						return err
					}
				} else {
					for _, v := range views {
						if v.Error != "" {
							fmt.Fprintf(out, "%d:%d\terror: %s\n", v.I, v.J, v.Error)
							continue
						}
						fmt.Fprintf(out, "%d:%d\t%d\t%d\n", v.I, v.J, v.Value, v.Index)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d queries failed", failed, len(answers))
				}
				return nil
			})
		},
	}
}

func (a *app) lcaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lca U V",
		Short: "Lowest common ancestor of the Cartesian tree nodes at positions U and V",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				uv, err := parseInts(args)
				if err != nil {
					return err
				}
				name, err := a.resolveIndex(ctx, cmd)
				if err != nil {
					return err
				}
				ans, err := a.manager.LCA(ctx, name, uv[0], uv[1])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if a.jsonOut {
					return a.printJSON(out, view(ans))
				}
				fmt.Fprintf(out, "lca(%d,%d)\t%d\t%d\n", ans.I, ans.J, ans.Value, ans.Index)
				return nil
			})
		},
	}
}

func (a *app) lcpCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "lcp A B",
		Short: "Longest common prefix of the suffixes starting at offsets A and B",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				ab, err := parseInts(args)
				if err != nil {
					return err
				}
				if text == "" {
					r, closeFn, err := a.openInput(cmd)
					if err != nil {
						return err
					}
					defer closeFn()
					raw, err := io.ReadAll(r)
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
					text = strings.TrimRight(string(raw), "\r\n")
				}

				sa, err := suffix.New(text)
				if err != nil {
					return err
				}
				n, err := sa.LCP(ab[0], ab[1])
				if err != nil {
					return err
				}
				a.logger.DebugContext(ctx, "lcp answered", "length", sa.Len(), "a", ab[0], "b", ab[1])

				out := cmd.OutOrStdout()
				if a.jsonOut {
					return a.printJSON(out, map[string]int{"a": ab[0], "b": ab[1], "lcp": n})
				}
				fmt.Fprintf(out, "%d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "text to index, read from --input when empty")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the shape of the index built over the input sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				name, err := a.resolveIndex(ctx, cmd)
				if err != nil {
					return err
				}
				r, err := a.manager.Get(name)
				if err != nil {
					return err
				}
				return a.printJSON(cmd.OutOrStdout(), r.Stats())
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexes preloaded from the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(context.Context) error {
				names := a.manager.Names()
				out := cmd.OutOrStdout()
				if a.jsonOut {
					return a.printJSON(out, names)
				}
				for _, name := range names {
					r, err := a.manager.Get(name)
					if err != nil {
						continue
					}
					fmt.Fprintf(out, "%s\t%d\n", name, r.Len())
				}
				return nil
			})
		},
	}
}

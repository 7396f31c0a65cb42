package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/rescache/config"
	"github.com/IvanBrykalov/rescache/internal/logging"
	"github.com/IvanBrykalov/rescache/loader"
	pmet "github.com/IvanBrykalov/rescache/metrics/prom"
	"github.com/IvanBrykalov/rescache/response"
	"github.com/IvanBrykalov/rescache/store/sqlite"
)

type benchFlags struct {
	resources int
	questions int
	workers   int
	duration  time.Duration
	loadDelay time.Duration
	failPct   int
	zipfS     float64
	zipfV     float64
	seed      int64
}

// benchResource stands in for an expensive model instance.
type benchResource struct {
	name     string
	loadedAt time.Time
}

func (r *benchResource) answer(q string) string {
	return r.name + " answered: " + response.Normalize(q)
}

func newBenchCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var f benchFlags
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic workload against the loader and response cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if f.resources <= 0 || f.questions <= 0 {
				return errors.New("--resources and --questions must be > 0")
			}
			if f.zipfS <= 1 || f.zipfV < 1 {
				return errors.New("--zipf-s must be > 1 and --zipf-v >= 1")
			}
			if f.workers <= 0 {
				f.workers = 1
			}
			return runBench(cmd.Context(), cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.resources, "resources", 50, "number of registered resources")
	fl.IntVar(&f.questions, "questions", 10_000, "question keyspace size")
	fl.IntVar(&f.workers, "workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	fl.DurationVar(&f.duration, "duration", 10*time.Second, "benchmark duration")
	fl.DurationVar(&f.loadDelay, "load-delay", 20*time.Millisecond, "simulated construction time per resource")
	fl.IntVar(&f.failPct, "fail-pct", 0, "percentage of constructions that fail [0..100]")
	fl.Float64Var(&f.zipfS, "zipf-s", 1.1, "Zipf s > 1 (skew)")
	fl.Float64Var(&f.zipfV, "zipf-v", 1.0, "Zipf v")
	fl.Int64Var(&f.seed, "seed", time.Now().UnixNano(), "random seed")
	return cmd
}

func runBench(parent context.Context, cfg *config.Config, f benchFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// ---- Metrics ----
	ns := cfg.Metrics.Namespace
	loaderMet := pmet.New(nil, ns, "loader", nil)
	responseMet := pmet.New(nil, ns, "response", nil)

	// ---- Components ----
	l := loader.New[*benchResource](loader.Options{
		CacheSize:     cfg.Resource.CacheSize,
		MaxConcurrent: cfg.Resource.MaxConcurrent,
		Logger:        log,
		Metrics:       loaderMet,
	})
	defer func() { _ = l.Close() }()
	pmet.RegisterGate(nil, ns, l.GateStats)

	rc := response.New(response.Options{
		MaxSize:  cfg.Response.MaxSize,
		Duration: cfg.Response.Duration,
		Logger:   log,
		Metrics:  responseMet,
	})

	for i := 0; i < f.resources; i++ {
		name := "model-" + strconv.Itoa(i)
		l.Register(name, func() (*benchResource, error) {
			time.Sleep(f.loadDelay)
			if f.failPct > 0 && rand.Intn(100) < f.failPct {
				return nil, fmt.Errorf("simulated failure loading %s", name)
			}
			return &benchResource{name: name, loadedAt: time.Now()}, nil
		})
	}

	// ---- Snapshot restore ----
	var snap *sqlite.Store
	if cfg.Store.Path != "" {
		snap, err = sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = snap.Close() }()

		entries, err := snap.Load(parent)
		if err != nil {
			return err
		}
		n := rc.Restore(entries)
		log.Info("snapshot loaded", zap.String("path", cfg.Store.Path), zap.Int("restored", n))
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Prometheus metrics ----
	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics: serving", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	go rc.RunJanitor(ctx, cfg.Response.CleanupInterval)

	// ---- Load generation ----
	var ops, loadErrs atomic.Uint64
	runCtx, cancel := context.WithTimeout(ctx, f.duration)
	defer cancel()

	start := time.Now()
	var g errgroup.Group
	for w := 0; w < f.workers; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(f.seed + int64(w)*9973))
			resZipf := rand.NewZipf(r, f.zipfS, f.zipfV, uint64(f.resources-1))
			qZipf := rand.NewZipf(r, f.zipfS, f.zipfV, uint64(f.questions-1))

			for runCtx.Err() == nil {
				ops.Add(1)
				name := "model-" + strconv.FormatUint(resZipf.Uint64(), 10)
				res, err := l.Get(name)
				if err != nil {
					loadErrs.Add(1)
					continue
				}

				// Vary the surface form so equivalent questions share a key.
				q := "What is answer " + strconv.FormatUint(qZipf.Uint64(), 10) + "?"
				if r.Intn(2) == 0 {
					q = "  what IS answer" + q[len("What is answer"):len(q)-1]
				}
				_, err = rc.GetOrCompute(runCtx, q, func(context.Context) (string, error) {
					return res.answer(q), nil
				})
				if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	// ---- Snapshot save ----
	if snap != nil {
		entries := rc.Entries()
		if err := snap.Save(context.Background(), entries); err != nil {
			return err
		}
		log.Info("snapshot saved", zap.String("path", cfg.Store.Path), zap.Int("entries", len(entries)))
	}

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}

	// ---- Report ----
	ls := l.Stats()
	rs := rc.Stats()
	n := ops.Load()
	fmt.Printf("resources=%d questions=%d workers=%d dur=%v seed=%d\n",
		f.resources, f.questions, f.workers, elapsed, f.seed)
	fmt.Printf("ops=%d (%.0f ops/s)  load-errors=%d\n", n, float64(n)/elapsed.Seconds(), loadErrs.Load())
	fmt.Printf("loader: loaded=%d/%d loads=%d failures=%d hits=%d misses=%d evictions=%d gate-total=%d\n",
		ls.Loaded, ls.Registered, ls.Loads, ls.Failures, ls.Hits, ls.Misses, ls.Cache.Evictions, ls.Gate.Total)
	fmt.Printf("response: size=%d/%d hits=%d misses=%d hit-rate=%.2f%% evictions=%d\n",
		rs.Size, rs.MaxSize, rs.Hits, rs.Misses, rs.HitRate, rs.Evictions)
	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beorn7/perks/quantile"
	"github.com/spf13/cobra"

	"mercator-hq/pulse/pkg/cli"
	"mercator-hq/pulse/pkg/client"
	"mercator-hq/pulse/pkg/sample"
)

var benchFlags struct {
	target      string
	duration    time.Duration
	requests    int
	concurrency int
	batch       int
	gzip        bool
	token       string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load test a collector",
	Long: `Send batches of synthetic custom counter samples to a collector and
report throughput and request latency.

The run stops after --requests requests or when --duration elapses,
whichever comes first. Samples are counted under the metric
"bench_samples", so run against a collector you do not scrape for real.

Examples:
  # Ten seconds with four workers
  pulse bench --target http://127.0.0.1:9405 --duration 10s --concurrency 4

  # Exactly 1000 gzip requests of 50 samples
  pulse bench --requests 1000 --batch 50 --gzip`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchFlags.target, "target", "http://127.0.0.1:9405", "collector base URL")
	benchCmd.Flags().DurationVar(&benchFlags.duration, "duration", 10*time.Second, "maximum run time")
	benchCmd.Flags().IntVar(&benchFlags.requests, "requests", 0, "stop after this many requests (0 for no limit)")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 1, "concurrent workers")
	benchCmd.Flags().IntVar(&benchFlags.batch, "batch", 10, "samples per request")
	benchCmd.Flags().BoolVar(&benchFlags.gzip, "gzip", false, "gzip request bodies")
	benchCmd.Flags().StringVar(&benchFlags.token, "token", "", "producer token (default $PULSE_TOKEN)")
}

type benchResult struct {
	Requests  int64         `json:"requests"`
	Failed    int64         `json:"failed"`
	Samples   int64         `json:"samples"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	PerSecond float64       `json:"requests_per_second"`
	P50       time.Duration `json:"p50_ns"`
	P95       time.Duration `json:"p95_ns"`
	P99       time.Duration `json:"p99_ns"`
	Max       time.Duration `json:"max_ns"`
	LastError string        `json:"last_error,omitempty"`
}

func (r benchResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "requests:   %d (%d failed)\n", r.Requests, r.Failed)
	fmt.Fprintf(&sb, "samples:    %d\n", r.Samples)
	fmt.Fprintf(&sb, "elapsed:    %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&sb, "throughput: %.1f req/s\n", r.PerSecond)
	fmt.Fprintf(&sb, "latency:    p50 %s  p95 %s  p99 %s  max %s",
		r.P50.Round(time.Microsecond), r.P95.Round(time.Microsecond),
		r.P99.Round(time.Microsecond), r.Max.Round(time.Microsecond))
	if r.LastError != "" {
		fmt.Fprintf(&sb, "\nlast error: %s", r.LastError)
	}
	return sb.String()
}

type benchOptions struct {
	duration    time.Duration
	requests    int
	concurrency int
	batch       int
}

func runBench(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	switch {
	case benchFlags.concurrency <= 0:
		return cli.NewConfigError("--concurrency", "must be positive")
	case benchFlags.batch <= 0:
		return cli.NewConfigError("--batch", "must be positive")
	case benchFlags.duration <= 0:
		return cli.NewConfigError("--duration", "must be positive")
	}

	c, err := client.New(benchFlags.target, client.Options{
		Gzip:      benchFlags.gzip,
		Token:     tokenOrEnv(benchFlags.token),
		UserAgent: "pulse-bench/" + Version,
	})
	if err != nil {
		return cli.NewConfigError("--target", err.Error())
	}

	res := bench(cmd.Context(), c, benchOptions{
		duration:    benchFlags.duration,
		requests:    benchFlags.requests,
		concurrency: benchFlags.concurrency,
		batch:       benchFlags.batch,
	})
	if err := f.FormatTo(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if res.Requests > 0 && res.Failed == res.Requests {
		return cli.NewCommandError("bench", fmt.Errorf("every request failed: %s", res.LastError))
	}
	return nil
}

// bench drives opts.concurrency workers against c until the request
// budget is spent or the duration elapses.
func bench(ctx context.Context, c *client.Client, opts benchOptions) benchResult {
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	var (
		issued  atomic.Int64
		failed  atomic.Int64
		mu      sync.Mutex
		stream  = quantile.NewTargeted(map[float64]float64{0.5: 0.05, 0.95: 0.01, 0.99: 0.001})
		maxLat  time.Duration
		lastErr string
		wg      sync.WaitGroup
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			batch := benchBatch(worker, opts.batch)
			for ctx.Err() == nil {
				if n := issued.Add(1); opts.requests > 0 && n > int64(opts.requests) {
					issued.Add(-1)
					return
				}

				t0 := time.Now()
				err := c.Send(ctx, batch...)
				lat := time.Since(t0)
				if err != nil && ctx.Err() != nil {
					// canceled mid-flight; not a collector failure
					issued.Add(-1)
					return
				}

				mu.Lock()
				stream.Insert(lat.Seconds())
				maxLat = max(maxLat, lat)
				if err != nil {
					lastErr = err.Error()
				}
				mu.Unlock()
				if err != nil {
					failed.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	res := benchResult{
		Requests:  issued.Load(),
		Failed:    failed.Load(),
		Elapsed:   elapsed,
		Max:       maxLat,
		LastError: lastErr,
	}
	res.Samples = (res.Requests - res.Failed) * int64(opts.batch)
	if elapsed > 0 {
		res.PerSecond = float64(res.Requests) / elapsed.Seconds()
	}
	if stream.Count() > 0 {
		res.P50 = seconds(stream.Query(0.5))
		res.P95 = seconds(stream.Query(0.95))
		res.P99 = seconds(stream.Query(0.99))
	}
	return res
}

func benchBatch(worker, n int) []sample.Sample {
	one := 1.0
	batch := make([]sample.Sample, n)
	for i := range batch {
		batch[i] = &sample.Custom{
			Name:        "bench_samples",
			Description: "Samples sent by pulse bench",
			Type:        "Counter",
			Value:       &one,
			Labels:      map[string]any{"worker": worker},
		}
	}
	return batch
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

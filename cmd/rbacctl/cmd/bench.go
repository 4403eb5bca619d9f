package cmd

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	goRBAC "github.com/MrEthical07/goRBAC"
)

type benchOptions struct {
	users       int
	concurrency int
	ops         int
	perms       []string
	noCache     bool
}

func newBenchCmd(g *globalFlags) *cobra.Command {
	o := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent permission checks against a policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.users <= 0 || o.concurrency <= 0 || o.ops <= 0 {
				return errors.New("users, concurrency and ops must be > 0")
			}

			engine, policy, err := g.engine(cmd, func(b *goRBAC.Builder) {
				b.WithMetricsEnabled(true).WithLatencyHistograms(true)
			})
			if err != nil {
				return err
			}
			defer engine.Close()
			if o.noCache {
				engine.ClearCache()
			}

			perms := o.perms
			if len(perms) == 0 {
				for _, p := range engine.Permissions() {
					perms = append(perms, p.Name)
				}
			}
			if len(perms) == 0 {
				return errors.New("policy registers no permissions; pass --perm")
			}

			users := benchUsers(policy, o.users)
			stats := runChecks(engine, users, perms, o)

			printStats(cmd, "check", stats)
			cs := engine.GetCacheStats()
			fmt.Fprintf(cmd.OutOrStdout(), "cache: hits=%d misses=%d size=%d evictions=%d\n", cs.Hits, cs.Misses, cs.Size, cs.Evictions)
			snap := engine.MetricsSnapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "decisions: allowed=%d denied=%d\n", snap.Counters[goRBAC.MetricCheckAllowed], snap.Counters[goRBAC.MetricCheckDenied])
			return nil
		},
	}
	cmd.Flags().IntVar(&o.users, "users", 1000, "number of synthetic users")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&o.ops, "ops", 200000, "total checks to run")
	cmd.Flags().StringSliceVar(&o.perms, "perm", nil, "permissions to check (default: every registered permission)")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "invalidate the decision cache before every check")
	return cmd
}

func benchUsers(policy goRBAC.Policy, n int) []goRBAC.User {
	r := rand.New(rand.NewSource(1))
	users := make([]goRBAC.User, n)
	for i := range users {
		u := goRBAC.User{ID: fmt.Sprintf("user-%d", i)}
		if len(policy.Roles) > 0 {
			u.Roles = []string{policy.Roles[r.Intn(len(policy.Roles))].Name}
		}
		users[i] = u
	}
	return users
}

func runChecks(engine *goRBAC.Engine, users []goRBAC.User, perms []string, o *benchOptions) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		denied    int64
		latencies = make([]time.Duration, 0, o.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < o.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, o.ops/o.concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= o.ops {
					break
				}
				user := users[r.Intn(len(users))]
				perm := perms[r.Intn(len(perms))]
				if o.noCache {
					engine.InvalidateUserCache(user.ID)
				}
				t0 := time.Now()
				ok := engine.HasPermission(user, perm)
				local = append(local, time.Since(t0))
				if !ok {
					atomic.AddInt64(&denied, 1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, denied)
}

type phaseStats struct {
	total   time.Duration
	ops     int
	denied  int64
	p50     time.Duration
	p95     time.Duration
	p99     time.Duration
	opsPerS float64
}

func computeStats(total time.Duration, samples []time.Duration, denied int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:   total,
		ops:     len(samples),
		denied:  denied,
		p50:     percentile(samples, 50),
		p95:     percentile(samples, 95),
		p99:     percentile(samples, 99),
		opsPerS: float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(cmd *cobra.Command, name string, s phaseStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ops=%d denied=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.denied,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Nanosecond),
		s.p95.Round(time.Nanosecond),
		s.p99.Round(time.Nanosecond),
	)
}

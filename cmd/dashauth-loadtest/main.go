package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/store/memory"
)

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users and sessions to seed")
		companies   = flag.Int("companies", 8, "size of the company universe")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *companies <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, companies, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	universe := make([]string, *companies)
	for i := range universe {
		universe[i] = fmt.Sprintf("company-%d", i)
	}

	store := memory.New()
	for i := 0; i < *users; i++ {
		id := fmt.Sprintf("u%d", i)
		store.PutUser(dashauth.UserRecord{
			ID:         id,
			Identifier: id + "@example.com",
			Role:       string(permission.RoleViewer),
			Active:     true,
		})
		store.Grant(id, universe[i%len(universe)], permission.ViewDashboard, permission.ViewInbox)
	}

	cfg := dashauth.DefaultConfig()
	cfg.Session.Secret = "loadtest-secret-loadtest-secret-00"
	cfg.RateLimit.Backend = dashauth.RateLimitRedis
	cfg.Audit.Enabled = false
	cfg.Companies = universe

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	engine, err := dashauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		WithPermissionStore(store).
		WithLogger(quiet).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("issuing %d sessions...\n", *users)
	startSeed := time.Now()
	tokens := make([]string, *users)
	sessions := make([]*dashauth.Session, *users)
	for i := range tokens {
		tok, err := engine.IssueSession(dashauth.Claims{
			Subject:   fmt.Sprintf("u%d", i),
			Email:     fmt.Sprintf("u%d@example.com", i),
			Role:      permission.RoleViewer,
			Companies: []string{universe[i%len(universe)]},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		s, ok := engine.VerifySession(tok)
		if !ok {
			fmt.Fprintln(os.Stderr, "freshly issued token did not verify")
			os.Exit(1)
		}
		tokens[i] = tok
		sessions[i] = s
	}
	fmt.Printf("issued in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		if _, ok := engine.VerifySession(tokens[r.Intn(len(tokens))]); !ok {
			return errVerify
		}
		return nil
	})

	authorizeStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		idx := r.Intn(len(sessions))
		if !engine.Can(ctx, sessions[idx], permission.ResourceInbox, permission.ActionView, universe[idx%len(universe)]) {
			return errDenied
		}
		return nil
	})

	rateStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		key := fmt.Sprintf("loadtest:%d", r.Intn(len(tokens)))
		_, err := engine.CheckRateLimit(ctx, key, cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow)
		return err
	})

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("authorize", authorizeStats)
	printStats("ratelimit", rateStats)
}

type loadError string

func (e loadError) Error() string { return string(e) }

const (
	errVerify loadError = "verify failed"
	errDenied loadError = "authorization denied"
)

// runPhase spreads ops calls of fn across concurrency workers and records
// the latency of each call.
func runPhase(ops, concurrency int, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// Command leader runs the dataflow Leader control plane (spec.md §4.5): it
// owns the live graph, the active recipe, and the worker registry, and
// exposes the Controller RPC surface (spec.md §6) over HTTP.
//
// Configuration is layered the teacher's way: flags registered on a
// cobra.Command, bound through viper so LEADER_-prefixed environment
// variables and an optional config file override the same keys (SPEC_FULL.md
// §AMBIENT). CLI parsing itself stays a thin bootstrap — there is no
// subcommand tree, only flags that populate Config.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flowmesh/dataflow/internal/authority"
	"github.com/flowmesh/dataflow/internal/leader"
	"github.com/flowmesh/dataflow/internal/migration"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("leader")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "leader",
		Short: "Run the dataflow Leader control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":4000", "HTTP listen address for the Controller RPC surface")
	flags.String("redis-addr", "", "redis address for the durable Authority; empty uses an in-memory Authority")
	flags.Int("quorum", 1, "minimum healthy workers before graph-mutating requests are accepted")
	flags.Duration("worker-ttl", 15*time.Second, "TTL a worker heartbeat must renew within to stay live")
	flags.Duration("poll-interval", 3*time.Second, "how often to reconcile the worker registry against the Authority")
	flags.Duration("health-probe-interval", 5*time.Second, "how often to actively probe each registered worker's /health endpoint")
	flags.String("log-level", "info", "zap log level: debug, info, warn, error")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	if cfgFile := os.Getenv("LEADER_CONFIG"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		_ = v.ReadInConfig() // a missing optional config file just falls back to flags/env
	}

	return cmd
}

func run(v *viper.Viper) error {
	log, err := newLogger(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("leader: logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	auth, err := newAuthority(v.GetString("redis-addr"))
	if err != nil {
		return fmt.Errorf("leader: authority: %w", err)
	}

	l := leader.New(leader.Config{
		Authority:    auth,
		RPC:          leader.NewHTTPRPC(),
		QuorumTarget: v.GetInt("quorum"),
		Log:          log,
	})

	if cs, err := auth.Read(context.Background()); err != nil {
		log.Warn("could not read prior controller state, starting from an empty graph", zap.Error(err))
	} else {
		l.Bootstrap(cs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reconcileWorkers(ctx, l, auth, v.GetDuration("poll-interval"), v.GetDuration("worker-ttl"), log)

	hm := leader.NewHealthMonitor(v.GetDuration("health-probe-interval"), log)
	hm.SetOnUnhealthy(func(workerID string) {
		if err := l.HandleFailedWorkers(context.Background(), []string{workerID}); err != nil {
			log.Warn("failed to process unhealthy worker", zap.String("worker", workerID), zap.Error(err))
		}
	})
	hm.Start(ctx, func() []migration.WorkerDescriptor {
		workers := l.Workers()
		out := make([]migration.WorkerDescriptor, len(workers))
		for i, w := range workers {
			out[i] = migration.WorkerDescriptor{ID: w.ID, URI: w.URI, Region: w.Region}
		}
		return out
	})
	defer hm.Stop()

	srv := leader.NewServer(l, log)
	httpSrv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("leader listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("leader: listen: %w", err)
	case <-stop:
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}
	log.Info("leader stopped")
	return nil
}

// reconcileWorkers periodically diffs the Authority's live-worker set
// against the Leader's in-memory registry (spec.md §4.5
// handle_register_from_authority / handle_failed_workers), the polling
// counterpart to cmd/coordinator/main.go's healthMonitor goroutine.
func reconcileWorkers(ctx context.Context, l *leader.Leader, auth authority.Authority, interval, ttl time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	known := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		live, err := auth.LiveWorkers(ctx)
		if err != nil {
			log.Warn("reconcile: could not list live workers", zap.Error(err))
			continue
		}

		seen := make(map[string]bool, len(live))
		for _, w := range live {
			seen[w.ID] = true
			if known[w.ID] {
				continue
			}
			desc := migration.WorkerDescriptor{ID: w.ID, URI: w.URI, Region: w.Region, Healthy: true}
			if err := l.HandleRegisterFromAuthority(ctx, desc); err != nil {
				log.Warn("reconcile: failed to register worker", zap.String("worker", w.ID), zap.Error(err))
				continue
			}
			known[w.ID] = true
			log.Info("worker registered", zap.String("worker", w.ID), zap.String("uri", w.URI))
		}

		var failed []string
		for id := range known {
			if !seen[id] {
				failed = append(failed, id)
				delete(known, id)
			}
		}
		if len(failed) > 0 {
			if err := l.HandleFailedWorkers(ctx, failed); err != nil {
				log.Warn("reconcile: failed to process worker failures", zap.Error(err))
			}
			log.Warn("workers marked failed", zap.Strings("workers", failed))
		}
	}
}

func newAuthority(redisAddr string) (authority.Authority, error) {
	if redisAddr == "" {
		return authority.NewFake(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", redisAddr, err)
	}
	return authority.NewRedis(client), nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

// Command worker runs a dataflow Worker (spec.md §4.4): it hosts domain
// shards the Leader places on it and answers the Worker/Leader RPC surface
// (spec.md §4.5) over HTTP.
//
// Configuration follows the same cobra+viper layering as cmd/leader.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flowmesh/dataflow/internal/authority"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/worker"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("worker")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a dataflow Worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":4001", "HTTP listen address for the Worker RPC surface")
	flags.String("external-addr", "", "address other workers/the Leader should use to reach this worker; defaults to --addr")
	flags.String("id", "", "stable worker id for Authority heartbeats; random if unset")
	flags.String("region", "", "placement region reported on heartbeat")
	flags.String("redis-addr", "", "redis address for Authority heartbeats; empty disables self-registration")
	flags.Duration("heartbeat-interval", 5*time.Second, "how often to renew the Authority heartbeat")
	flags.Duration("heartbeat-ttl", 15*time.Second, "TTL the Leader's reconciler expires this worker after")
	flags.String("log-level", "info", "zap log level: debug, info, warn, error")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	if cfgFile := os.Getenv("WORKER_CONFIG"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		_ = v.ReadInConfig()
	}

	return cmd
}

func run(v *viper.Viper) error {
	log, err := newLogger(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("worker: logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	externalAddr := v.GetString("external-addr")
	if externalAddr == "" {
		externalAddr = "http://localhost" + v.GetString("addr")
	}

	w := worker.New(externalAddr, graph.New(), log)
	srv := worker.NewServer(w, log)

	id := v.GetString("id")
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisAddr := v.GetString("redis-addr"); redisAddr != "" {
		auth, err := newAuthority(redisAddr)
		if err != nil {
			return fmt.Errorf("worker: authority: %w", err)
		}
		go heartbeat(ctx, auth, authority.WorkerDescriptor{ID: id, URI: externalAddr, Region: v.GetString("region")},
			v.GetDuration("heartbeat-interval"), v.GetDuration("heartbeat-ttl"), log)
	} else {
		log.Warn("no redis-addr configured, worker will not self-register with an Authority")
	}

	httpSrv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("worker listening", zap.String("addr", httpSrv.Addr), zap.String("id", id), zap.String("external_addr", externalAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("worker: listen: %w", err)
	case <-stop:
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}
	log.Info("worker stopped")
	return nil
}

// heartbeat renews this worker's Authority lease until ctx is canceled, the
// worker-side half of spec.md §4.5's worker/<id> heartbeat key.
func heartbeat(ctx context.Context, auth authority.Authority, desc authority.WorkerDescriptor, interval, ttl time.Duration, log *zap.Logger) {
	beat := func() {
		if err := auth.WorkerHeartbeat(ctx, desc, ttl); err != nil {
			log.Warn("heartbeat failed", zap.Error(err))
		}
	}
	beat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

func newAuthority(redisAddr string) (authority.Authority, error) {
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

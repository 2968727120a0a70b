package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oriys/chk/internal/chkbookmark"
	"github.com/oriys/chk/internal/chkconfig"
	"github.com/oriys/chk/internal/chkengine"
	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkiv"
	"github.com/oriys/chk/internal/chkmetrics"
	"github.com/oriys/chk/internal/chkobs"
	"github.com/oriys/chk/internal/chkreport"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/logging"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var (
		grpcAddr   string
		leaderAddr string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run a checker Engine daemon",
		Long:  "Run checkengined as one rank's checker Engine instance: cluster RPC server for the Leader's fan-out, REPORT/REJOIN client to the Leader",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := chkconfig.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = chkconfig.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			chkconfig.LoadFromEnv(cfg)

			if cmd.Flags().Changed("grpc") {
				cfg.GRPC.Addr = grpcAddr
			}
			if cmd.Flags().Changed("leader") {
				cfg.Cluster.LeaderAddr = leaderAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}

			logging.SetLevelFromString(cfg.Logging.Level)
			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

			ctx := context.Background()
			if err := chkobs.Init(ctx, chkobs.Config{
				Enabled:     cfg.Tracing.Enabled,
				Exporter:    cfg.Tracing.Exporter,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer chkobs.Shutdown(context.Background())

			var metricsSrv *http.Server
			if cfg.Metrics.Enabled {
				m := chkmetrics.New(cfg.Metrics.Namespace)
				mux := http.NewServeMux()
				mux.Handle("/metrics", m.Handler())
				metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Op().Warn("metrics server exited", "error", err)
					}
				}()
			}

			kv, err := chkbookmark.NewPostgresKV(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect bookmark store: %w", err)
			}
			store := chkbookmark.New(kv)
			defer store.Close()

			leaderClient, err := chkrpc.Dial(ctx, cfg.Cluster.LeaderAddr)
			if err != nil {
				return fmt.Errorf("dial leader: %w", err)
			}
			defer leaderClient.Close()

			scheduler := &chkengine.Scheduler{Drain: chkengine.DoneDrainer{}}
			inst := chkinstance.New(chkinstance.RoleEngine, cfg.Rank, store, nil, scheduler.Run)

			reporter := &chkreport.Reporter{
				Pending: inst.Pending,
				Sender:  &chkengine.RemoteSender{Client: leaderClient},
				Marker:  inst.Pools,
				Lookup:  inst.Pools,
				Policy:  inst,
				Rank:    cfg.Rank,
			}

			worker := &chkengine.PoolWorker{Reporter: reporter}
			handler := &chkengine.Handler{Inst: inst, Worker: worker}

			if cfg.Redis.Addr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				bus := chkiv.NewBus(rdb, uuid.New(), nil)
				worker.IV = &chkengine.BusPublisher{Bus: bus}
				if err := bus.Subscribe(ctx, handler); err != nil {
					logging.Op().Warn("iv bus subscribe failed", "error", err)
				}
				defer bus.Close()
			}

			clusterSrv := chkrpc.NewServer(handler)
			go func() {
				if err := clusterSrv.Serve(cfg.GRPC.Addr); err != nil {
					logging.Op().Error("cluster rpc server exited", "error", err)
				}
			}()
			logging.Op().Info("engine cluster RPC server started", "addr", cfg.GRPC.Addr, "rank", cfg.Rank)

			if pools, flags, err := inst.Rejoin(ctx, &chkengine.RejoinCaller{Client: leaderClient}); err != nil {
				logging.Op().Warn("rejoin failed", "error", err)
			} else {
				logging.Op().Info("rejoin resumed pools", "count", len(pools), "flags", len(flags))
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")

			clusterSrv.Stop()
			if metricsSrv != nil {
				metricsSrv.Close()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc", ":9291", "Cluster RPC listen address")
	cmd.Flags().StringVar(&leaderAddr, "leader", "", "Leader's cluster RPC address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	return cmd
}

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
	"github.com/oriys/chk/internal/chkcontrol"
	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkiv"
	"github.com/oriys/chk/internal/chkleader"
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
		grpcAddr    string
		controlAddr string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the checker Leader daemon",
		Long:  "Run checkleaderd as the cluster's single checker Leader: cluster RPC, operator control API, and the phase-advancing scheduler",
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
			if cmd.Flags().Changed("control") {
				cfg.Control.Addr = controlAddr
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
				logging.Op().Info("metrics server started", "addr", cfg.Metrics.Addr)
			}

			kv, err := chkbookmark.NewPostgresKV(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect bookmark store: %w", err)
			}
			store := chkbookmark.New(kv)
			defer store.Close()

			transport := &chkleader.ClientTransport{Addrs: chkleader.StaticAddresser(cfg.Cluster.RankAddrs)}
			defer transport.Close()

			scheduler := &chkleader.Scheduler{Transport: transport}
			inst := chkinstance.New(chkinstance.RoleLeader, cfg.Rank, store, nil, scheduler.Run)

			reporter := &chkreport.Reporter{
				Pending: inst.Pending,
				Sender:  &chkleader.LocalSender{Policies: inst},
				Marker:  inst.Pools,
				Lookup:  inst.Pools,
				Policy:  inst,
				Rank:    cfg.Rank,
			}
			scheduler.Reporter = reporter

			clusterHandler := &chkleader.Handler{Inst: inst, Reporter: reporter}

			var bus *chkiv.Bus
			if cfg.Redis.Addr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				bus = chkiv.NewBus(rdb, uuid.New(), clusterHandler)
				scheduler.IV = &chkleader.BusPublisher{Bus: bus}
				if err := bus.Subscribe(ctx, clusterHandler); err != nil {
					logging.Op().Warn("iv bus subscribe failed", "error", err)
				}
				defer bus.Close()
			}

			clusterSrv := chkrpc.NewServer(clusterHandler)
			go func() {
				if err := clusterSrv.Serve(cfg.GRPC.Addr); err != nil {
					logging.Op().Error("cluster rpc server exited", "error", err)
				}
			}()
			logging.Op().Info("cluster RPC server started", "addr", cfg.GRPC.Addr)

			controlSrv := chkcontrol.NewServer(&chkcontrol.LeaderHandler{Inst: inst})
			go func() {
				if err := controlSrv.Serve(cfg.Control.Addr); err != nil {
					logging.Op().Error("control server exited", "error", err)
				}
			}()
			logging.Op().Info("operator control server started", "addr", cfg.Control.Addr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")

			controlSrv.Stop()
			clusterSrv.Stop()
			if metricsSrv != nil {
				metricsSrv.Close()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc", ":9191", "Cluster RPC listen address")
	cmd.Flags().StringVar(&controlAddr, "control", ":9193", "Operator control API listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	return cmd
}

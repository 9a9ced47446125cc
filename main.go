package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"tagserver/server"
)

// 进程退出码
const (
	ExitConfigFailure = 2
	ExitBindFailure   = 5
	ExitSendFailure   = 42
)

// tagserver 入口：绑定 UDP 端口，以固定步长驱动服务端，并提供管理接口
func main() {
	var (
		configPath string
		port       string
		adminAddr  string
	)
	flag.StringVar(&configPath, "config", "", "optional YAML config file")
	flag.StringVar(&port, "port", server.DefaultPort, "UDP port to listen on")
	flag.StringVar(&adminAddr, "admin", ":8080", "admin HTTP listen address, empty disables")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		_ = server.InitLogger("", zapcore.InfoLevel)
		server.Log.Errorw("invalid configuration", "err", err)
		os.Exit(ExitConfigFailure)
	}
	// 命令行显式给出的参数优先
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = port
		case "admin":
			cfg.AdminAddr = adminAddr
		}
	})

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if err := server.InitLogger(cfg.LogFile, level); err != nil {
		panic(err)
	}
	os.Exit(run(cfg))
}

func run(cfg server.Config) int {
	defer server.SyncLogger()

	transport, err := server.Bind(cfg.Host, cfg.Port, cfg.QueueSize)
	if err != nil {
		server.Log.Errorw("unable to bind server socket for listening",
			"err", err, "errno", server.ErrnoOf(err))
		return ExitBindFailure
	}

	roster := &server.RosterStore{}
	hub := server.NewObserverHub()
	metrics := &server.Metrics{}
	srv := server.NewServer(cfg, transport, server.Options{
		Metrics: metrics,
		Sinks:   []server.RosterSink{roster, hub},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	server.Log.Infow("tag server listening", "addr", transport.LocalAddr(), "tickRate", cfg.TickRate)
	g.Go(func() error {
		return server.RunFixedStep(ctx, srv, cfg.TickRate)
	})

	var admin *http.Server
	if cfg.AdminAddr != "" {
		admin = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           server.AdminHandler(metrics, roster, hub),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			server.Log.Infow("admin listening", "addr", cfg.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		server.Log.Info("shutting down...")
		hub.Close()
		var err error
		if admin != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = admin.Shutdown(sctx)
		}
		return multierr.Append(err, transport.Close())
	})

	err = g.Wait()
	var sendErr *server.SendError
	switch {
	case errors.As(err, &sendErr):
		server.Log.Errorw("unable to send packet to client",
			"to", sendErr.To, "err", sendErr.Err, "errno", server.ErrnoOf(err))
		return ExitSendFailure
	case err != nil:
		server.Log.Errorw("server stopped", "err", err)
		return 1
	}
	return 0
}

package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/svoboda-labs/robotpilot/server"
)

func main() {
	var (
		listenAddr string
		adminAddr  string
		configPath string
		logPath    string
		logLevel   string
	)
	flag.StringVar(&listenAddr, "addr", "", "protocol listen address, e.g. :3999 (overrides config file)")
	flag.StringVar(&adminAddr, "admin-addr", "", "admin/dashboard HTTP listen address, e.g. :8080 (overrides config file)")
	flag.StringVar(&configPath, "config", "", "optional TOML config file")
	flag.StringVar(&logPath, "log", "", "log file path (overrides config file)")
	flag.StringVar(&logLevel, "log-level", "", "zap log level: debug, info, warn, error (overrides config file)")
	flag.Parse()

	cfg := server.NewConfig()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			panic(err)
		}
	}
	if listenAddr != "" {
		cfg.OverrideListenAddr(listenAddr)
	}
	if adminAddr != "" {
		cfg.OverrideAdminAddr(adminAddr)
	}
	if logLevel != "" {
		cfg.OverrideLogLevel(logLevel)
	}
	effectiveLogPath := cfg.LogPath()
	if logPath != "" {
		effectiveLogPath = logPath
	}

	if err := server.InitLogger(effectiveLogPath, cfg.LogLevel()); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	metrics := &server.ServerMetrics{}
	mgr := server.GetSessionManager()
	hub := server.NewDashboardHub(mgr)
	hub.StartTicker()

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/config", server.HandleAdminConfig(cfg))
	mux.HandleFunc("/admin/metrics", server.HandleMetrics(metrics))
	mux.HandleFunc("/admin/sessions", server.HandleSessions(mgr))
	mux.HandleFunc("/dashboard/ws", server.HandleDashboardWS(hub))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	adminSrv := &http.Server{Addr: cfg.AdminAddr(), Handler: mux}
	go func() {
		server.Log.Infow("admin/dashboard listening", "addr", cfg.AdminAddr())
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalw("admin listen failed", "err", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		server.Log.Fatalw("protocol listen failed", "err", err)
	}
	server.Log.Infow("protocol listening", "addr", cfg.ListenAddr())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				server.Log.Warnw("accept failed", "err", err)
				return
			}
			go server.Run(conn, cfg, metrics, mgr, hub, server.Log)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("shutting down")
	_ = ln.Close()
	_ = adminSrv.Close()
}

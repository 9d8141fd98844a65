package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabetor/soundmirror/internal/app"
	"github.com/iabetor/soundmirror/internal/config"
	"github.com/iabetor/soundmirror/internal/httpapi"
	"github.com/iabetor/soundmirror/internal/logger"
)

func main() {
	os.Exit(run())
}

// run 返回进程退出码，确保 defer 的 Close 和日志刷新在退出前执行。
func run() int {
	configPath := flag.String("config", "configs/soundmirror.yaml", "配置文件路径")
	addr := flag.String("addr", "", "监听地址，覆盖 server.addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Infof("[main] SoundMirror 启动中 (log_level=%s)", cfg.Log.Level)

	a, err := app.New(cfg)
	if err != nil {
		logger.Errorf("[main] 初始化失败: %v", err)
		return 1
	}
	defer a.Close()

	var lister httpapi.HistoryLister
	if a.History != nil {
		lister = a.History
	}
	router := httpapi.NewRouter(httpapi.NewHandler(a.Surface, lister), httpapi.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		CorsOrigins: cfg.Server.CorsOrigins,
		RateLimit:   cfg.Server.RateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[main] HTTP 接口监听于 %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case sig := <-sigCh:
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[main] HTTP 服务出错: %v", err)
			code = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("[main] HTTP 服务关闭超时: %v", err)
	}

	logger.Info("[main] SoundMirror 已停止")
	return code
}

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"heartpredict/config"
	"heartpredict/heart"
	qhttp "heartpredict/http"
	"heartpredict/logging"
	"heartpredict/monitoring"
)

func main() {
	// 1. Load config
	configPath := config.Locate()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", configPath, err)
	}

	// 2. Initialize logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 3. Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
	logger.Info("exiting")
}

// run 加载模型后才开始监听, 阻塞直到ctx结束或服务器出错
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 模型加载失败时直接返回, 不打开监听端口
	load := func() (*heart.Predictor, error) {
		return heart.LoadPredictor(cfg.Model.Type, cfg.Model.Path, heart.WithCache(cfg.Cache.Size))
	}
	predictor, err := load()
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", cfg.Model.Path, err)
	}
	fmt.Fprintln(stdout, "Model loaded successfully.")
	logger.Info("model loaded", zap.String("path", cfg.Model.Path), zap.String("model_type", cfg.Model.Type))

	store := heart.NewStore(predictor)
	metrics := monitoring.NewMetricsCollector()
	go metrics.Start(ctx, 15*time.Second)
	handlers := qhttp.NewHandlers(store, metrics, logger)

	if cfg.Model.Watch {
		watcher, err := heart.NewWatcher(cfg.Model.Path, store, load, logger)
		if err != nil {
			return fmt.Errorf("failed to watch model %s: %w", cfg.Model.Path, err)
		}
		watcher.OnReload = func(err error) {
			if err != nil {
				metrics.IncrCounter("heart_model_reload_failures_total", 1, nil)
				return
			}
			metrics.IncrCounter("heart_model_reloads_total", 1, nil)
		}
		go watcher.Run(ctx)
		logger.Info("watching model for changes", zap.String("path", cfg.Model.Path))
	}

	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, handlers, logger)
	listener, err := net.Listen("tcp", server.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", server.Addr(), err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	return <-errCh
}

// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxRequestSize 表单与JSON请求体上限
const maxRequestSize = 1 << 20

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8501,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// NewHandler 组装路由与中间件链
func NewHandler(config ServerConfig, handlers *Handlers, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	handlers.RegisterHandlers(mux)

	chain := Chain(
		RecoveryMiddleware(logger),            // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(logger),              // 2. 日志中间件
		SecurityHeadersMiddleware,             // 3. 安全头中间件
		CORSMiddleware(config.AllowedOrigins), // 4. CORS中间件
		RequestSizeMiddleware(maxRequestSize), // 5. 请求大小限制
		TimeoutMiddleware(config.Timeout),     // 6. 超时中间件
	)
	return chain(mux)
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, handlers *Handlers, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           NewHandler(config, handlers, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.Timeout,
			// 写超时由TimeoutMiddleware负责, 否则会切断WebSocket连接
			IdleTimeout: 120 * time.Second,
			ErrorLog:    zap.NewStdLog(logger),
		},
		config: config,
		logger: logger,
	}
}

// Start 启动服务器, 阻塞直到服务器关闭
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(listener)
}

// Serve 在给定listener上提供服务
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", listener.Addr().String()),
		zap.String("websocket", "/api/ws"),
	)
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}

package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/tanush-em/ERP/config"
	"github.com/tanush-em/ERP/core/logger"
)

// initLogger khởi tạo và cấu hình logger cho toàn bộ ứng dụng
func initLogger() {
	// Khởi tạo logger với cấu hình mặc định
	// Logger sẽ tự động đọc environment variables để cấu hình
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Log thông tin khởi tạo bằng logger mới
	log := logger.GetAppLogger()
	log.Info("Logger system initialized successfully")
}

// startWorker chạy một background worker trong goroutine riêng với recover
func startWorker(ctx context.Context, name string, run func(context.Context)) {
	log := logger.GetAppLogger()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"worker": name,
					"panic":  r,
				}).Error("Worker goroutine panic")
			}
		}()
		run(ctx)
	}()
	log.WithField("worker", name).Info("Worker started")
}

// main_thread khởi tạo và chạy Fiber server
func main_thread(app *fiber.App, cfg *config.Configuration) {
	address := cfg.Address

	log := logger.GetAppLogger()
	log.Info("Starting Fiber server...")

	// Helper function để resolve đường dẫn tương đối từ thư mục gốc project
	resolvePath := func(path string) string {
		if filepath.IsAbs(path) {
			return path
		}
		currentDir, err := os.Getwd()
		if err != nil {
			return path
		}
		for {
			envDir := filepath.Join(currentDir, "config", "env")
			if _, err := os.Stat(envDir); err == nil {
				return filepath.Join(currentDir, path)
			}
			parentDir := filepath.Dir(currentDir)
			if parentDir == currentDir {
				return path
			}
			currentDir = parentDir
		}
	}

	// Kiểm tra xem có bật TLS không
	if cfg.EnableTLS && cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		// Resolve đường dẫn certificate và key
		certPath := resolvePath(cfg.TLSCertFile)
		keyPath := resolvePath(cfg.TLSKeyFile)

		// Kiểm tra file certificate và key tồn tại
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			log.Fatalf("TLS certificate file not found: %s (resolved from: %s)", certPath, cfg.TLSCertFile)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			log.Fatalf("TLS key file not found: %s (resolved from: %s)", keyPath, cfg.TLSKeyFile)
		}

		// Load certificate và key
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			log.Fatalf("Error loading TLS certificate: %v", err)
		}

		// Tạo listener với TLS
		ln, err := net.Listen("tcp", address)
		if err != nil {
			log.Fatalf("Error creating listener: %v", err)
		}

		// Cấu hình TLS
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}

		// Wrap listener với TLS
		tlsListener := tls.NewListener(ln, tlsConfig)

		log.WithFields(map[string]interface{}{
			"address": address,
			"cert":    certPath,
			"key":     keyPath,
		}).Info("Starting server with HTTPS/TLS")

		// Khởi động server với TLS listener
		if err := app.Listener(tlsListener); err != nil {
			log.Fatalf("Error in Fiber Listener with TLS: %v", err)
		}
	} else {
		// Khởi động server HTTP thông thường
		log.WithFields(map[string]interface{}{
			"address":  address,
			"protocol": "HTTP",
		}).Info("Starting server with HTTP")

		listenConfig := fiber.ListenConfig{}
		if err := app.Listen(address, listenConfig); err != nil {
			log.Fatalf("Error in Fiber Listen: %v", err)
		}
	}
}

// Hàm main
func main() {
	// Khởi tạo logger
	initLogger()

	// Khởi tạo cấu hình server
	cfg := config.NewConfig()
	if cfg == nil {
		logger.GetAppLogger().Fatal("Failed to initialize config: config is nil")
	}

	// Nối dây toàn bộ service của pipeline
	app, err := initApplication(cfg)
	if err != nil {
		logger.GetAppLogger().Fatalf("Failed to initialize application: %v", err)
	}

	// Context dùng chung cho toàn bộ background worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mutation watcher và stream poller tự mở goroutine riêng cho
	// từng collection/stream nên gọi trực tiếp
	app.watcher.Start(ctx)
	app.poller.Start(ctx)

	// Các worker còn lại chạy vòng lặp blocking
	startWorker(ctx, "notification_hub", app.hub.Start)
	startWorker(ctx, "audit_retention", app.retention.Start)
	startWorker(ctx, "health_sampler", app.sampler.Start)
	startWorker(ctx, "stuck_operation", app.stuck.Start)
	startWorker(ctx, "realtime_reaper", func(ctx context.Context) {
		app.manager.StartReaper(ctx,
			time.Duration(cfg.SessionReapIntervalSeconds)*time.Second,
			time.Duration(cfg.SessionIdleTimeoutSeconds)*time.Second)
	})

	// Chạy Fiber server trên main thread
	main_thread(InitFiberApp(cfg, app.handlers), cfg)
}

package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tanush-em/ERP/config"
	"github.com/tanush-em/ERP/core/api/handler"
	"github.com/tanush-em/ERP/core/api/router"
	"github.com/tanush-em/ERP/core/audit"
	"github.com/tanush-em/ERP/core/common"
	"github.com/tanush-em/ERP/core/database"
	"github.com/tanush-em/ERP/core/monitor"
	"github.com/tanush-em/ERP/core/notification"
	"github.com/tanush-em/ERP/core/notification/channels"
	"github.com/tanush-em/ERP/core/realtime"
	"github.com/tanush-em/ERP/core/watcher"
)

// Tên các collection hạ tầng của pipeline (không thuộc danh sách watch)
const (
	colChangeRecords = "change_records"
	colNotifications = "notifications"
	colOperations    = "erp_operations"
	colSystemHealth  = "system_health"
)

// application gom toàn bộ service, worker và handler đã được nối dây
type application struct {
	cfg    *config.Configuration
	client *mongo.Client

	auditService *audit.Service
	watcher      *watcher.Watcher
	hub          *notification.Hub
	manager      *realtime.Manager
	poller       *realtime.Poller

	retention *audit.RetentionWorker
	sampler   *monitor.HealthSampler
	stuck     *monitor.StuckOperationWorker

	handlers router.Handlers
}

// initApplication kết nối database, đảm bảo collection/index và nối dây
// toàn bộ service theo thứ tự phụ thuộc: audit -> watcher -> monitor ->
// notification -> realtime.
func initApplication(cfg *config.Configuration) (*application, error) {
	client, err := database.GetInstance(cfg)
	if err != nil {
		return nil, err
	}
	logrus.Info("Connected to MongoDB")

	// Đảm bảo database, các collection được watch và các collection hạ tầng tồn tại
	collections := append(cfg.WatchedCollectionList(),
		colChangeRecords, colNotifications, colOperations, colSystemHealth)
	if err := database.EnsureDatabaseAndCollections(client, cfg.MongoDB_DBName, collections); err != nil {
		return nil, err
	}
	logrus.Info("Ensured database and collections")

	db := client.Database(cfg.MongoDB_DBName)

	// Khởi tạo index từ tag `index` của các model
	database.CreateIndexes(context.TODO(), db.Collection(colChangeRecords), audit.ChangeRecord{})
	database.CreateIndexes(context.TODO(), db.Collection(colNotifications), notification.Notification{})
	database.CreateIndexes(context.TODO(), db.Collection(colOperations), monitor.OperationRecord{})
	database.CreateIndexes(context.TODO(), db.Collection(colSystemHealth), monitor.HealthSample{})
	logrus.Info("Ensured collection indexes")

	// Audit trail + integrity hasher
	auditStore := audit.NewChangeRecordStore(db.Collection(colChangeRecords))
	auditService := audit.NewService(auditStore, db)

	// Mutation watcher trên change stream của các collection nghiệp vụ
	bus := watcher.NewBus()
	mutationWatcher := watcher.NewWatcher(db, cfg.WatchedCollectionList(), bus, auditService)

	// Giám sát vận hành: thao tác nghiệp vụ và sức khỏe hệ thống
	operationService := monitor.NewOperationService(db.Collection(colOperations))
	healthService := monitor.NewHealthService(db.Collection(colSystemHealth))

	// Notification hub với 4 rule built-in. Ngưỡng đọc qua closure để
	// thay đổi settings lúc runtime có hiệu lực từ chu kỳ kế tiếp.
	notifStore := notification.NewStore(db.Collection(colNotifications))
	var hub *notification.Hub
	rules := []notification.Rule{
		notification.NewOperationFailedRule(operationService),
		notification.NewFailureRateRule(operationService, func() float64 { return hub.FailureRateThreshold() }),
		notification.NewResourceSaturationRule(healthService, func() float64 { return hub.ResourceThreshold() }),
		notification.NewUpstreamSilenceRule(operationService, mutationWatcher),
	}
	settings := notification.DefaultSettings(cfg.HubFailureRateThreshold, cfg.HubResourceThreshold)
	hub = notification.NewHub(notifStore, rules, settings,
		time.Duration(cfg.HubCheckIntervalSeconds)*time.Second)

	if cfg.SMTPHost != "" && len(cfg.AlertEmailRecipients()) > 0 {
		hub.SetEmailChannel(channels.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.AlertEmailFrom,
			FromName: "ERP Alerts",
		}, cfg.AlertEmailRecipients())
	}
	if cfg.AlertWebhookURL != "" {
		hub.SetWebhookChannel(cfg.AlertWebhookURL)
	}

	// Realtime broker: đăng ký fetcher cho từng stream rồi gắn làm
	// broadcaster cho hub
	manager := realtime.NewManager()
	registerStreamFetchers(manager, auditService, operationService, healthService, notifStore)
	hub.SetBroadcaster(manager)

	app := &application{
		cfg:          cfg,
		client:       client,
		auditService: auditService,
		watcher:      mutationWatcher,
		hub:          hub,
		manager:      manager,
		poller:       realtime.NewPoller(manager),
		retention:    audit.NewRetentionWorker(auditStore, 24*time.Hour, cfg.AuditRetentionDays),
		sampler:      monitor.NewHealthSampler(healthService, client, time.Duration(cfg.HealthSampleIntervalSeconds)*time.Second),
		stuck:        monitor.NewStuckOperationWorker(operationService, 5*time.Minute, 30*time.Minute),
		handlers: router.Handlers{
			Audit:        handler.NewAuditHandler(auditService),
			Notification: handler.NewNotificationHandler(hub, notifStore),
			Monitor:      handler.NewMonitorHandler(operationService, healthService, mutationWatcher),
			System:       handler.NewSystemHandler(client, mutationWatcher, manager),
			Realtime:     manager,
		},
	}
	return app, nil
}

// registerStreamFetchers gắn nguồn dữ liệu cho từng stream realtime.
// Snapshot hiện tại giống nhau giữa các room, room được giữ lại cho
// việc phân mảnh dữ liệu sau này.
func registerStreamFetchers(
	manager *realtime.Manager,
	auditService *audit.Service,
	operationService *monitor.OperationService,
	healthService *monitor.HealthService,
	notifStore *notification.Store,
) {
	manager.RegisterFetcher(realtime.StreamOperations, func(ctx context.Context, room string) (interface{}, error) {
		return operationService.RecentOperations(ctx, "", 1, 20)
	})
	manager.RegisterFetcher(realtime.StreamSystemHealth, func(ctx context.Context, room string) (interface{}, error) {
		sample, err := healthService.LatestSample(ctx)
		if errors.Is(err, common.ErrNotFound) {
			// Chưa có mẫu nào, gửi snapshot rỗng thay vì lỗi
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return sample, nil
	})
	manager.RegisterFetcher(realtime.StreamAuditTrail, func(ctx context.Context, room string) (interface{}, error) {
		return auditService.Search(ctx, audit.QueryFilter{}, 1, 20)
	})
	manager.RegisterFetcher(realtime.StreamAnalytics, func(ctx context.Context, room string) (interface{}, error) {
		failureStats, err := operationService.FailureStats(ctx, time.Hour)
		if err != nil {
			return nil, err
		}
		notifStats, err := notifStore.Stats(ctx)
		if err != nil {
			return nil, err
		}
		opsLast24h, err := operationService.CountSince(ctx, time.Now().Add(-24*time.Hour).UnixMilli())
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"failureStats":      failureStats,
			"notificationStats": notifStats,
			"operationsLast24h": opsLast24h,
		}, nil
	})
	manager.RegisterFetcher(realtime.StreamNotifications, func(ctx context.Context, room string) (interface{}, error) {
		return notifStore.Recent(ctx, "", false, 1, 20)
	})
}

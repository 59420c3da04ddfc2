// Package router đăng ký toàn bộ route của API vận hành pipeline.
package router

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/tanush-em/ERP/core/api/handler"
	"github.com/tanush-em/ERP/core/realtime"
)

// Handlers gom các handler cần cho việc đăng ký route
type Handlers struct {
	Audit        *handler.AuditHandler
	Notification *handler.NotificationHandler
	Monitor      *handler.MonitorHandler
	System       *handler.SystemHandler
	Realtime     *realtime.Manager
}

// SetupRoutes đăng ký tất cả route lên app.
//
// Cấu trúc:
//   - GET  /health
//   - GET  /ws                                     (WebSocket broker)
//   - /api/v1/audit-trail/...                      (truy vấn, rollback, toàn vẹn, báo cáo)
//   - /api/v1/notifications/...                    (danh sách, settings, custom send)
//   - /api/v1/operations, /api/v1/system-health    (giám sát vận hành)
func SetupRoutes(app *fiber.App, h Handlers) {
	// Health check không nằm trong versioned group
	app.Get("/health", h.System.HandleHealthCheck)

	// WebSocket broker mount qua adaptor (coder/websocket handshake trên net/http)
	app.Get("/ws", adaptor.HTTPHandler(http.HandlerFunc(h.Realtime.ServeWS)))

	v1 := app.Group("/api/v1")

	// Audit trail
	auditGroup := v1.Group("/audit-trail")
	// GET /audit-trail — tìm kiếm change records. Query: collection, entityId, operation, userId, from, to, rolledBack, page, limit
	auditGroup.Get("/", h.Audit.HandleSearch)
	// GET /audit-trail/entity/:collection/:entityId — lịch sử thay đổi của một entity
	auditGroup.Get("/entity/:collection/:entityId", h.Audit.HandleEntityHistory)
	// POST /audit-trail/integrity/validate — kiểm tra chuỗi toàn vẹn. Query: from, to, collection
	auditGroup.Post("/integrity/validate", h.Audit.HandleValidateIntegrity)
	// GET /audit-trail/rollback/candidates — các record có thể rollback
	auditGroup.Get("/rollback/candidates", h.Audit.HandleRollbackCandidates)
	// GET /audit-trail/rollback/:id/safety — kiểm tra rollback có an toàn không
	auditGroup.Get("/rollback/:id/safety", h.Audit.HandleRollbackSafety)
	// POST /audit-trail/rollback/:id — thực hiện rollback. Body: {performedBy}
	auditGroup.Post("/rollback/:id", h.Audit.HandleRollback)
	// GET /audit-trail/suspicious — các pattern hoạt động bất thường. Query: from, to
	auditGroup.Get("/suspicious", h.Audit.HandleSuspicious)
	// GET /audit-trail/compliance-report — báo cáo tuân thủ. Query: from, to
	auditGroup.Get("/compliance-report", h.Audit.HandleComplianceReport)

	// Notifications
	notificationGroup := v1.Group("/notifications")
	// GET /notifications — danh sách notification. Query: severity, unread, page, limit
	notificationGroup.Get("/", h.Notification.HandleList)
	// GET /notifications/stats — thống kê theo severity và trạng thái đọc
	notificationGroup.Get("/stats", h.Notification.HandleStats)
	// GET /notifications/settings — settings hiện tại của hub
	notificationGroup.Get("/settings", h.Notification.HandleGetSettings)
	// PUT /notifications/settings — partial update settings, hiệu lực từ chu kỳ tiếp theo
	notificationGroup.Put("/settings", h.Notification.HandleUpdateSettings)
	// POST /notifications/send — gửi notification thủ công, bỏ qua rule và cooldown
	notificationGroup.Post("/send", h.Notification.HandleSendCustom)
	// PUT /notifications/read-all — đánh dấu toàn bộ đã đọc
	notificationGroup.Put("/read-all", h.Notification.HandleMarkAllRead)
	// PUT /notifications/:id/read — đánh dấu một notification đã đọc
	notificationGroup.Put("/:id/read", h.Notification.HandleMarkRead)

	// Monitoring
	operationGroup := v1.Group("/operations")
	// GET /operations — operation gần nhất. Query: status, page, limit
	operationGroup.Get("/", h.Monitor.HandleRecentOperations)
	// GET /operations/failure-stats — tỉ lệ lỗi. Query: windowMinutes
	operationGroup.Get("/failure-stats", h.Monitor.HandleFailureStats)

	healthGroup := v1.Group("/system-health")
	// GET /system-health — mẫu sức khỏe mới nhất
	healthGroup.Get("/", h.Monitor.HandleLatestHealth)
	// GET /system-health/history — lịch sử mẫu. Query: sinceMinutes
	healthGroup.Get("/history", h.Monitor.HandleHealthHistory)

	// GET /watcher/status — trạng thái change stream từng collection
	v1.Get("/watcher/status", h.Monitor.HandleWatcherStatus)
	// GET /realtime/stats — số connection và subscription của broker
	v1.Get("/realtime/stats", h.System.HandleRealtimeStats)
}

// Package handler - Handler cho monitoring: operations, system health, watcher.
package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/tanush-em/ERP/core/monitor"
	"github.com/tanush-em/ERP/core/watcher"
)

// MonitorHandler xử lý các route giám sát vận hành
type MonitorHandler struct {
	Operations *monitor.OperationService
	Health     *monitor.HealthService
	Watcher    *watcher.Watcher
}

// NewMonitorHandler tạo mới MonitorHandler
func NewMonitorHandler(operations *monitor.OperationService, health *monitor.HealthService, w *watcher.Watcher) *MonitorHandler {
	return &MonitorHandler{Operations: operations, Health: health, Watcher: w}
}

// HandleRecentOperations xử lý GET /operations
// Query: status, page, limit
func (h *MonitorHandler) HandleRecentOperations(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		page, limit := parsePagination(c)
		result, err := h.Operations.RecentOperations(c.Context(), c.Query("status"), page, limit)
		return HandleResponse(c, result, err)
	})
}

// HandleFailureStats xử lý GET /operations/failure-stats
// Query: windowMinutes (mặc định 60)
func (h *MonitorHandler) HandleFailureStats(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		minutes, err := strconv.Atoi(c.Query("windowMinutes", "60"))
		if err != nil || minutes < 1 {
			minutes = 60
		}
		stats, err := h.Operations.FailureStats(c.Context(), time.Duration(minutes)*time.Minute)
		return HandleResponse(c, stats, err)
	})
}

// HandleLatestHealth xử lý GET /system-health
func (h *MonitorHandler) HandleLatestHealth(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		sample, err := h.Health.LatestSample(c.Context())
		return HandleResponse(c, sample, err)
	})
}

// HandleHealthHistory xử lý GET /system-health/history
// Query: sinceMinutes (mặc định 60)
func (h *MonitorHandler) HandleHealthHistory(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		minutes, err := strconv.Atoi(c.Query("sinceMinutes", "60"))
		if err != nil || minutes < 1 {
			minutes = 60
		}
		since := time.Now().Add(-time.Duration(minutes) * time.Minute).UnixMilli()
		samples, err := h.Health.SamplesSince(c.Context(), since)
		return HandleResponse(c, samples, err)
	})
}

// HandleWatcherStatus xử lý GET /watcher/status
func (h *MonitorHandler) HandleWatcherStatus(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		return HandleResponse(c, h.Watcher.Status(), nil)
	})
}

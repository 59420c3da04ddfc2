// Package handler - Handler hệ thống: health check và thống kê realtime broker.
package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tanush-em/ERP/core/realtime"
	"github.com/tanush-em/ERP/core/watcher"
)

// SystemHandler xử lý health check và thống kê broker
type SystemHandler struct {
	Client  *mongo.Client
	Watcher *watcher.Watcher
	Manager *realtime.Manager
}

// NewSystemHandler tạo mới SystemHandler
func NewSystemHandler(client *mongo.Client, w *watcher.Watcher, manager *realtime.Manager) *SystemHandler {
	return &SystemHandler{Client: client, Watcher: w, Manager: manager}
}

// HandleHealthCheck xử lý GET /health
// Trả về trạng thái database, watcher và broker. Không yêu cầu auth.
func (h *SystemHandler) HandleHealthCheck(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbConnected := h.Client.Ping(pingCtx, readpref.Primary()) == nil

		watcherActive := 0
		statuses := h.Watcher.Status()
		for _, status := range statuses {
			if status.Active {
				watcherActive++
			}
		}

		status := "healthy"
		if !dbConnected {
			status = "unhealthy"
		} else if watcherActive < len(statuses) {
			status = "degraded"
		}

		return HandleResponse(c, fiber.Map{
			"status":      status,
			"dbConnected": dbConnected,
			"watcher": fiber.Map{
				"active": watcherActive,
				"total":  len(statuses),
			},
			"realtime":  h.Manager.Stats(),
			"timestamp": time.Now().UnixMilli(),
		}, nil)
	})
}

// HandleRealtimeStats xử lý GET /realtime/stats
func (h *SystemHandler) HandleRealtimeStats(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		return HandleResponse(c, h.Manager.Stats(), nil)
	})
}

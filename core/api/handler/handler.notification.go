// Package handler - Handler cho notification hub: danh sách, settings, custom send.
package handler

import (
	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tanush-em/ERP/core/common"
	"github.com/tanush-em/ERP/core/notification"
)

// NotificationHandler xử lý các route notification
type NotificationHandler struct {
	Hub   *notification.Hub
	Store *notification.Store
}

// NewNotificationHandler tạo mới NotificationHandler
func NewNotificationHandler(hub *notification.Hub, store *notification.Store) *NotificationHandler {
	return &NotificationHandler{Hub: hub, Store: store}
}

// HandleList xử lý GET /notifications
// Query: severity, unread, page, limit
func (h *NotificationHandler) HandleList(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		page, limit := parsePagination(c)
		result, err := h.Store.Recent(c.Context(), c.Query("severity"), c.Query("unread") == "true", page, limit)
		return HandleResponse(c, result, err)
	})
}

// HandleStats xử lý GET /notifications/stats
func (h *NotificationHandler) HandleStats(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		stats, err := h.Store.Stats(c.Context())
		return HandleResponse(c, stats, err)
	})
}

// HandleMarkRead xử lý PUT /notifications/:id/read
func (h *NotificationHandler) HandleMarkRead(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		id, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return HandleResponse(c, nil, common.NewError(common.ErrCodeValidationFormat, "Id không hợp lệ", common.StatusBadRequest, nil))
		}
		updated, err := h.Store.MarkRead(c.Context(), id)
		return HandleResponse(c, updated, err)
	})
}

// HandleMarkAllRead xử lý PUT /notifications/read-all
func (h *NotificationHandler) HandleMarkAllRead(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		count, err := h.Store.MarkAllRead(c.Context())
		return HandleResponse(c, fiber.Map{"markedCount": count}, err)
	})
}

// HandleGetSettings xử lý GET /notifications/settings
func (h *NotificationHandler) HandleGetSettings(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		return HandleResponse(c, h.Hub.Settings(), nil)
	})
}

// HandleUpdateSettings xử lý PUT /notifications/settings
func (h *NotificationHandler) HandleUpdateSettings(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		var update notification.SettingsUpdate
		if err := c.Bind().Body(&update); err != nil {
			return HandleResponse(c, nil, common.NewError(common.ErrCodeValidationFormat, "Dữ liệu gửi lên không đúng định dạng JSON", common.StatusBadRequest, nil))
		}
		settings, err := h.Hub.UpdateSettings(update)
		return HandleResponse(c, settings, err)
	})
}

// customNotificationInput body của request gửi notification thủ công
type customNotificationInput struct {
	Type     string                 `json:"type" validate:"required"`
	Severity string                 `json:"severity" validate:"omitempty,oneof=info warning critical"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message" validate:"required"`
	Data     map[string]interface{} `json:"data"`
}

// HandleSendCustom xử lý POST /notifications/send
// Bỏ qua rule và cooldown của hub.
func (h *NotificationHandler) HandleSendCustom(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		var input customNotificationInput
		if err := c.Bind().Body(&input); err != nil {
			return HandleResponse(c, nil, common.NewError(common.ErrCodeValidationFormat, "Dữ liệu gửi lên không đúng định dạng JSON", common.StatusBadRequest, nil))
		}
		if err := validateInput(input); err != nil {
			return HandleResponse(c, nil, err)
		}

		created, err := h.Hub.SendCustom(c.Context(), notification.Notification{
			Type:     input.Type,
			Severity: input.Severity,
			Title:    input.Title,
			Message:  input.Message,
			Data:     input.Data,
		})
		return HandleResponse(c, created, err)
	})
}

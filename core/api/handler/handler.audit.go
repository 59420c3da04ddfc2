// Package handler - Handler cho audit trail: truy vấn, rollback, toàn vẹn, báo cáo.
package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tanush-em/ERP/core/audit"
	"github.com/tanush-em/ERP/core/common"
)

// AuditHandler xử lý các route audit trail
type AuditHandler struct {
	Service *audit.Service
}

// NewAuditHandler tạo mới AuditHandler
func NewAuditHandler(service *audit.Service) *AuditHandler {
	return &AuditHandler{Service: service}
}

// parsePagination đọc page/limit từ query, mặc định page=1 limit=50
func parsePagination(c fiber.Ctx) (int64, int64) {
	page, err := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.ParseInt(c.Query("limit", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}

// parseTimeRange đọc from/to (UnixMilli) từ query, 0 nếu không có
func parseTimeRange(c fiber.Ctx) (int64, int64) {
	from, _ := strconv.ParseInt(c.Query("from", "0"), 10, 64)
	to, _ := strconv.ParseInt(c.Query("to", "0"), 10, 64)
	return from, to
}

// HandleSearch xử lý GET /audit-trail
// Query: collection, entityId, operation, userId, from, to, rolledBack, page, limit
func (h *AuditHandler) HandleSearch(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		page, limit := parsePagination(c)
		from, to := parseTimeRange(c)

		filter := audit.QueryFilter{
			Collection: c.Query("collection"),
			EntityID:   c.Query("entityId"),
			Operation:  c.Query("operation"),
			UserID:     c.Query("userId"),
			From:       from,
			To:         to,
		}
		if raw := c.Query("rolledBack"); raw != "" {
			rolledBack := raw == "true"
			filter.RolledBack = &rolledBack
		}

		result, err := h.Service.Search(c.Context(), filter, page, limit)
		return HandleResponse(c, result, err)
	})
}

// HandleEntityHistory xử lý GET /audit-trail/entity/:collection/:entityId
func (h *AuditHandler) HandleEntityHistory(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		collection := c.Params("collection")
		entityID := c.Params("entityId")
		limit, err := strconv.ParseInt(c.Query("limit", "50"), 10, 64)
		if err != nil || limit < 1 {
			limit = 50
		}

		history, err := h.Service.EntityHistory(c.Context(), collection, entityID, limit)
		return HandleResponse(c, history, err)
	})
}

// HandleValidateIntegrity xử lý POST /audit-trail/integrity/validate
// Query: from, to, collection
func (h *AuditHandler) HandleValidateIntegrity(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		from, to := parseTimeRange(c)
		report, err := h.Service.ValidateIntegrity(c.Context(), from, to, c.Query("collection"))
		return HandleResponse(c, report, err)
	})
}

// HandleRollbackCandidates xử lý GET /audit-trail/rollback/candidates
func (h *AuditHandler) HandleRollbackCandidates(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		limit, err := strconv.ParseInt(c.Query("limit", "20"), 10, 64)
		if err != nil || limit < 1 {
			limit = 20
		}
		candidates, err := h.Service.RollbackCandidates(c.Context(), limit)
		return HandleResponse(c, candidates, err)
	})
}

// HandleRollbackSafety xử lý GET /audit-trail/rollback/:id/safety
func (h *AuditHandler) HandleRollbackSafety(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		id, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return HandleResponse(c, nil, common.NewError(common.ErrCodeValidationFormat, "Id không hợp lệ", common.StatusBadRequest, nil))
		}
		safety, err := h.Service.CheckRollbackSafety(c.Context(), id)
		return HandleResponse(c, safety, err)
	})
}

// rollbackInput body của request rollback
type rollbackInput struct {
	PerformedBy string `json:"performedBy"`
}

// HandleRollback xử lý POST /audit-trail/rollback/:id
func (h *AuditHandler) HandleRollback(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		id, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return HandleResponse(c, nil, common.NewError(common.ErrCodeValidationFormat, "Id không hợp lệ", common.StatusBadRequest, nil))
		}

		var input rollbackInput
		// Body rỗng hợp lệ: performedBy là tùy chọn
		_ = c.Bind().Body(&input)

		record, err := h.Service.PerformRollback(c.Context(), id, input.PerformedBy)
		return HandleResponse(c, record, err)
	})
}

// HandleSuspicious xử lý GET /audit-trail/suspicious
// Query: from, to
func (h *AuditHandler) HandleSuspicious(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		from, to := parseTimeRange(c)
		findings, err := h.Service.DetectSuspiciousActivity(c.Context(), from, to)
		return HandleResponse(c, findings, err)
	})
}

// HandleComplianceReport xử lý GET /audit-trail/compliance-report
// Query: from, to
func (h *AuditHandler) HandleComplianceReport(c fiber.Ctx) error {
	return SafeHandler(c, func() error {
		from, to := parseTimeRange(c)
		report, err := h.Service.GenerateComplianceReport(c.Context(), from, to)
		return HandleResponse(c, report, err)
	})
}

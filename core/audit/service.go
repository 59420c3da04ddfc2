// Package audit - Service điều phối nghiệp vụ audit trail: ghi change record,
// kiểm tra toàn vẹn, và thực hiện rollback.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	basemodels "github.com/tanush-em/ERP/core/base/models"
	"github.com/tanush-em/ERP/core/common"
	"github.com/tanush-em/ERP/core/document"
	"github.com/tanush-em/ERP/core/logger"
)

// Service là service nghiệp vụ audit trail
type Service struct {
	store *ChangeRecordStore
	db    *mongo.Database
	log   *logrus.Logger
}

// NewService tạo mới audit Service.
// db dùng để áp thao tác rollback lên các collection nghiệp vụ.
func NewService(store *ChangeRecordStore, db *mongo.Database) *Service {
	return &Service{
		store: store,
		db:    db,
		log:   logger.GetAuditLogger(),
	}
}

// Store trả về change record store (dùng bởi API handler cho truy vấn thô)
func (s *Service) Store() *ChangeRecordStore {
	return s.store
}

// LogChange sanitize trạng thái, tính hash toàn vẹn và ghi một change record.
//
// Tham số:
//   - collection: collection nghiệp vụ bị thay đổi
//   - entityID: id document (hex string)
//   - operation: create | update | delete | rollback
//   - userID: người thực hiện, có thể rỗng với thay đổi từ hệ thống
//   - before, after: trạng thái trước/sau (chưa sanitize)
//   - timestamp: thời điểm thay đổi UnixMilli, 0 = now
func (s *Service) LogChange(ctx context.Context, collection, entityID, operation, userID string, before, after document.Value, timestamp int64) (ChangeRecord, error) {
	var zero ChangeRecord
	if collection == "" || entityID == "" || operation == "" {
		return zero, common.ErrRequiredField
	}
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	cleanBefore := document.Sanitize(before)
	cleanAfter := document.Sanitize(after)

	hash, err := ComputeChangeHash(collection, entityID, operation, cleanAfter)
	if err != nil {
		return zero, err
	}

	record := ChangeRecord{
		Collection:  collection,
		EntityID:    entityID,
		Operation:   operation,
		UserID:      userID,
		BeforeState: cleanBefore.ToInterface(),
		AfterState:  cleanAfter.ToInterface(),
		ChangeHash:  hash,
		RolledBack:  false,
		Timestamp:   timestamp,
	}

	created, err := s.store.InsertOne(ctx, record)
	if err != nil {
		return zero, err
	}

	s.log.WithFields(logrus.Fields{
		"module":     "audit",
		"collection": collection,
		"entityId":   entityID,
		"operation":  operation,
		"changeHash": hash,
	}).Info("Đã ghi change record")

	return created, nil
}

// Search tìm change records theo điều kiện lọc với phân trang
func (s *Service) Search(ctx context.Context, filter QueryFilter, page, limit int64) (*basemodels.PaginateResult[ChangeRecord], error) {
	return s.store.Query(ctx, filter, page, limit)
}

// EntityHistory lấy lịch sử thay đổi của một entity
func (s *Service) EntityHistory(ctx context.Context, collection, entityID string, limit int64) ([]ChangeRecord, error) {
	return s.store.EntityHistory(ctx, collection, entityID, limit)
}

// ValidateIntegrity tính lại hash cho các record trong khoảng thời gian
// và trả về báo cáo các record không khớp
func (s *Service) ValidateIntegrity(ctx context.Context, from, to int64, collection string) (*IntegrityReport, error) {
	if to == 0 {
		to = time.Now().UnixMilli()
	}
	records, err := s.store.FindInRange(ctx, from, to, collection)
	if err != nil {
		return nil, err
	}
	report := ValidateChain(records)
	if len(report.Violations) > 0 {
		s.log.WithFields(logrus.Fields{
			"module":     "audit",
			"checked":    report.CheckedCount,
			"violations": len(report.Violations),
		}).Warn("Phát hiện record không khớp hash toàn vẹn")
	}
	return &report, nil
}

// ValidateChain kiểm tra toàn vẹn một dải records: tính lại hash từng record
// và so với hash đã lưu. Hàm thuần, không truy cập database.
func ValidateChain(records []ChangeRecord) IntegrityReport {
	report := IntegrityReport{
		CheckedCount: len(records),
		Violations:   []IntegrityViolation{},
		CheckedAt:    time.Now().UnixMilli(),
	}
	for _, record := range records {
		ok, computed, err := VerifyChangeHash(record)
		if err != nil {
			ok = false
			computed = ""
		}
		if ok {
			report.ValidCount++
			continue
		}
		report.Violations = append(report.Violations, IntegrityViolation{
			RecordID:     record.ID,
			Collection:   record.Collection,
			EntityID:     record.EntityID,
			StoredHash:   record.ChangeHash,
			ComputedHash: computed,
			Timestamp:    record.Timestamp,
		})
	}
	return report
}

// RollbackPlan mô tả thao tác cần áp lên collection nghiệp vụ để hoàn tác một thay đổi
type RollbackPlan struct {
	Action   string // delete | replace | reinsert
	Document interface{}
}

// Các action của rollback plan
const (
	RollbackActionDelete   = "delete"
	RollbackActionReplace  = "replace"
	RollbackActionReinsert = "reinsert"
)

// PlanRollback xác định thao tác hoàn tác cho một change record. Hàm thuần.
//
// Quy tắc:
//   - create  -> xóa document đã tạo
//   - update  -> thay document bằng beforeState
//   - delete  -> chèn lại document từ beforeState
//   - rollback và record đã rolled back -> từ chối
func PlanRollback(record ChangeRecord) (RollbackPlan, error) {
	var zero RollbackPlan
	if record.RolledBack {
		return zero, common.ErrAlreadyRolledBack
	}
	switch record.Operation {
	case OperationCreate:
		return RollbackPlan{Action: RollbackActionDelete}, nil
	case OperationUpdate:
		if record.BeforeState == nil {
			return zero, common.NewError(common.ErrCodeAuditRollback, "Record update không có beforeState, không thể hoàn tác", common.StatusConflict, nil)
		}
		return RollbackPlan{Action: RollbackActionReplace, Document: record.BeforeState}, nil
	case OperationDelete:
		if record.BeforeState == nil {
			return zero, common.NewError(common.ErrCodeAuditRollback, "Record delete không có beforeState, không thể hoàn tác", common.StatusConflict, nil)
		}
		return RollbackPlan{Action: RollbackActionReinsert, Document: record.BeforeState}, nil
	default:
		return zero, common.NewError(common.ErrCodeAuditRollback, fmt.Sprintf("Không hỗ trợ rollback cho operation %s", record.Operation), common.StatusConflict, nil)
	}
}

// CheckRollbackSafety kiểm tra một record có thể rollback an toàn không:
// record tồn tại, chưa rolled back, và không có thay đổi mới hơn trên cùng entity
func (s *Service) CheckRollbackSafety(ctx context.Context, id primitive.ObjectID) (*RollbackSafety, error) {
	record, err := s.store.FindOneById(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAuditNotFound
		}
		return nil, err
	}

	safety := &RollbackSafety{Safe: true}

	if record.RolledBack {
		safety.Safe = false
		safety.Reason = "Change record đã được rollback"
		return safety, nil
	}
	if record.Operation == OperationRollback {
		safety.Safe = false
		safety.Reason = "Record loại rollback không thể hoàn tác tiếp"
		return safety, nil
	}

	dependents, err := s.store.CountAfterForEntity(ctx, record.Collection, record.EntityID, record.Timestamp, record.ID)
	if err != nil {
		return nil, err
	}
	safety.DependentChanges = int(dependents)
	if dependents > 0 {
		safety.Safe = false
		safety.Reason = "Tồn tại thay đổi mới hơn trên entity, không thể rollback"
		safety.Warnings = append(safety.Warnings, fmt.Sprintf("Có %d thay đổi mới hơn trên cùng entity", dependents))
	}
	return safety, nil
}

// PerformRollback hoàn tác một change record: áp thao tác ngược lên collection
// nghiệp vụ, đánh dấu record gốc đã rolled back và ghi một record loại rollback
// tham chiếu record gốc với before/after đảo ngược.
func (s *Service) PerformRollback(ctx context.Context, id primitive.ObjectID, performedBy string) (*ChangeRecord, error) {
	record, err := s.store.FindOneById(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAuditNotFound
		}
		return nil, err
	}

	safety, err := s.CheckRollbackSafety(ctx, id)
	if err != nil {
		return nil, err
	}
	if !safety.Safe {
		if record.RolledBack {
			return nil, common.ErrAlreadyRolledBack
		}
		return nil, common.NewError(common.ErrCodeAuditDependent, safety.Reason, common.StatusConflict, nil)
	}

	plan, err := PlanRollback(record)
	if err != nil {
		return nil, err
	}
	if err := s.applyPlan(ctx, record, plan); err != nil {
		return nil, err
	}

	if err := s.store.MarkRolledBack(ctx, record.ID, performedBy); err != nil {
		return nil, err
	}

	// Record rollback: trạng thái trước là afterState của record gốc,
	// trạng thái sau là beforeState vừa được khôi phục
	rollbackRecord := ChangeRecord{
		Collection:  record.Collection,
		EntityID:    record.EntityID,
		Operation:   OperationRollback,
		UserID:      performedBy,
		BeforeState: record.AfterState,
		AfterState:  record.BeforeState,
		RollbackOf:  record.ID,
		Timestamp:   time.Now().UnixMilli(),
	}
	after := document.FromInterface(rollbackRecord.AfterState)
	hash, err := ComputeChangeHash(rollbackRecord.Collection, rollbackRecord.EntityID, OperationRollback, after)
	if err != nil {
		return nil, err
	}
	rollbackRecord.ChangeHash = hash

	created, err := s.store.InsertOne(ctx, rollbackRecord)
	if err != nil {
		return nil, err
	}

	logger.WithCollection("audit", record.Collection).WithFields(logrus.Fields{
		"entityId":   record.EntityID,
		"rollbackOf": record.ID.Hex(),
		"action":     plan.Action,
		"by":         performedBy,
	}).Info("Đã rollback change record")

	return &created, nil
}

// applyPlan áp thao tác hoàn tác lên collection nghiệp vụ
func (s *Service) applyPlan(ctx context.Context, record ChangeRecord, plan RollbackPlan) error {
	collection := s.db.Collection(record.Collection)
	filter := bson.M{"_id": entityFilterID(record.EntityID)}

	switch plan.Action {
	case RollbackActionDelete:
		_, err := collection.DeleteOne(ctx, filter)
		if err != nil {
			return common.ConvertMongoError(err)
		}
	case RollbackActionReplace:
		_, err := collection.ReplaceOne(ctx, filter, plan.Document)
		if err != nil {
			return common.ConvertMongoError(err)
		}
	case RollbackActionReinsert:
		doc := restoreID(plan.Document, record.EntityID)
		_, err := collection.InsertOne(ctx, doc)
		if err != nil {
			return common.ConvertMongoError(err)
		}
	}
	return nil
}

// entityFilterID chuyển entityId dạng hex về ObjectID nếu hợp lệ,
// ngược lại dùng nguyên string
func entityFilterID(entityID string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(entityID); err == nil {
		return oid
	}
	return entityID
}

// restoreID đảm bảo document chèn lại giữ nguyên _id gốc
func restoreID(doc interface{}, entityID string) interface{} {
	m, ok := doc.(map[string]interface{})
	if !ok {
		if bm, isBson := doc.(bson.M); isBson {
			m = map[string]interface{}(bm)
		} else {
			return doc
		}
	}
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out["_id"] = entityFilterID(entityID)
	return out
}

// RollbackCandidates liệt kê các record gần nhất có thể rollback
func (s *Service) RollbackCandidates(ctx context.Context, limit int64) ([]ChangeRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{
		"rolledBack": false,
		"operation":  bson.M{"$ne": OperationRollback},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	return s.store.Find(ctx, filter, opts)
}

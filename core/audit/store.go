// Package audit - ChangeRecordStore bao các truy vấn lên collection change_records.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	basemodels "github.com/tanush-em/ERP/core/base/models"
	basesvc "github.com/tanush-em/ERP/core/base/service"
	"github.com/tanush-em/ERP/core/common"
)

// ChangeRecordStore là service thao tác change_records
type ChangeRecordStore struct {
	*basesvc.BaseServiceMongoImpl[ChangeRecord]
}

// NewChangeRecordStore tạo mới ChangeRecordStore trên collection change_records
func NewChangeRecordStore(collection *mongo.Collection) *ChangeRecordStore {
	return &ChangeRecordStore{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[ChangeRecord](collection),
	}
}

// QueryFilter gom các điều kiện lọc change records từ API
type QueryFilter struct {
	Collection string
	EntityID   string
	Operation  string
	UserID     string
	From       int64 // UnixMilli, 0 = không giới hạn
	To         int64
	RolledBack *bool
}

// buildFilter dựng bson filter từ QueryFilter
func (f QueryFilter) buildFilter() bson.M {
	filter := bson.M{}
	if f.Collection != "" {
		filter["collection"] = f.Collection
	}
	if f.EntityID != "" {
		filter["entityId"] = f.EntityID
	}
	if f.Operation != "" {
		filter["operation"] = f.Operation
	}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.RolledBack != nil {
		filter["rolledBack"] = *f.RolledBack
	}
	timeRange := bson.M{}
	if f.From > 0 {
		timeRange["$gte"] = f.From
	}
	if f.To > 0 {
		timeRange["$lte"] = f.To
	}
	if len(timeRange) > 0 {
		filter["timestamp"] = timeRange
	}
	return filter
}

// Query tìm change records theo điều kiện lọc, phân trang, mới nhất trước
func (s *ChangeRecordStore) Query(ctx context.Context, filter QueryFilter, page, limit int64) (*basemodels.PaginateResult[ChangeRecord], error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return s.FindWithPagination(ctx, filter.buildFilter(), page, limit, opts)
}

// EntityHistory lấy lịch sử thay đổi của một entity, mới nhất trước
func (s *ChangeRecordStore) EntityHistory(ctx context.Context, collection, entityID string, limit int64) ([]ChangeRecord, error) {
	if collection == "" || entityID == "" {
		return nil, common.ErrRequiredField
	}
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	return s.Find(ctx, bson.M{"collection": collection, "entityId": entityID}, opts)
}

// FindInRange lấy change records trong khoảng thời gian, cũ nhất trước
// (thứ tự dùng cho kiểm tra chuỗi toàn vẹn)
func (s *ChangeRecordStore) FindInRange(ctx context.Context, from, to int64, collection string) ([]ChangeRecord, error) {
	filter := bson.M{"timestamp": bson.M{"$gte": from, "$lte": to}}
	if collection != "" {
		filter["collection"] = collection
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	return s.Find(ctx, filter, opts)
}

// MarkRolledBack đánh dấu record gốc đã được rollback
func (s *ChangeRecordStore) MarkRolledBack(ctx context.Context, id primitive.ObjectID, rolledBackBy string) error {
	update := bson.M{
		"$set": bson.M{
			"rolledBack":        true,
			"rolledBackBy":      rolledBackBy,
			"rollbackTimestamp": time.Now().UnixMilli(),
			"updatedAt":         time.Now().UnixMilli(),
		},
	}
	_, err := s.UpdateOne(ctx, bson.M{"_id": id}, update, nil)
	return err
}

// CountAfterForEntity đếm số thay đổi của cùng entity sau một thời điểm,
// bỏ qua chính record đang xét. Dùng để chặn rollback khi có thay đổi phụ thuộc.
func (s *ChangeRecordStore) CountAfterForEntity(ctx context.Context, collection, entityID string, after int64, exclude primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"collection": collection,
		"entityId":   entityID,
		"timestamp":  bson.M{"$gt": after},
		"_id":        bson.M{"$ne": exclude},
		"operation":  bson.M{"$ne": OperationRollback},
	}
	return s.CountDocuments(ctx, filter)
}

// PurgeOlderThan xóa các record cũ hơn mốc thời gian, giữ lại record đã rollback
// và record loại rollback để bảo toàn dấu vết khôi phục
func (s *ChangeRecordStore) PurgeOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	filter := bson.M{
		"timestamp":  bson.M{"$lt": cutoff},
		"rolledBack": false,
		"operation":  bson.M{"$ne": OperationRollback},
	}
	return s.DeleteMany(ctx, filter)
}

// CountSince đếm số thay đổi kể từ một thời điểm
func (s *ChangeRecordStore) CountSince(ctx context.Context, since int64) (int64, error) {
	return s.CountDocuments(ctx, bson.M{"timestamp": bson.M{"$gte": since}})
}

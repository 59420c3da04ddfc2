// Package notification - Store thao tác collection notifications.
package notification

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	basemodels "github.com/tanush-em/ERP/core/base/models"
	basesvc "github.com/tanush-em/ERP/core/base/service"
)

// Store là service thao tác collection notifications
type Store struct {
	*basesvc.BaseServiceMongoImpl[Notification]
}

// NewStore tạo mới notification Store
func NewStore(collection *mongo.Collection) *Store {
	return &Store{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[Notification](collection),
	}
}

// Recent lấy notification mới nhất trước, lọc theo severity/unread nếu có
func (s *Store) Recent(ctx context.Context, severity string, unreadOnly bool, page, limit int64) (*basemodels.PaginateResult[Notification], error) {
	filter := bson.M{}
	if severity != "" {
		filter["severity"] = severity
	}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return s.FindWithPagination(ctx, filter, page, limit, opts)
}

// MarkRead đánh dấu một notification đã đọc
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID) (*Notification, error) {
	update := bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now().UnixMilli()}}
	updated, err := s.UpdateOne(ctx, bson.M{"_id": id}, update, nil)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// MarkAllRead đánh dấu toàn bộ notification chưa đọc là đã đọc.
// Trả về số notification được cập nhật.
func (s *Store) MarkAllRead(ctx context.Context) (int64, error) {
	update := bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now().UnixMilli()}}
	return s.UpdateMany(ctx, bson.M{"read": false}, update, nil)
}

// Stats tổng hợp số lượng notification theo severity và trạng thái đọc
func (s *Store) Stats(ctx context.Context) (*NotificationStats, error) {
	total, err := s.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	unread, err := s.CountDocuments(ctx, bson.M{"read": false})
	if err != nil {
		return nil, err
	}
	stats := &NotificationStats{
		Total:      total,
		Unread:     unread,
		BySeverity: map[string]int64{},
	}
	for _, severity := range []string{SeverityInfo, SeverityWarning, SeverityCritical} {
		count, err := s.CountDocuments(ctx, bson.M{"severity": severity})
		if err != nil {
			return nil, err
		}
		stats.BySeverity[severity] = count
	}
	return stats, nil
}

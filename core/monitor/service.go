// Package monitor - Service truy vấn erp_operations và system_health.
package monitor

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	basemodels "github.com/tanush-em/ERP/core/base/models"
	basesvc "github.com/tanush-em/ERP/core/base/service"
	"github.com/tanush-em/ERP/core/common"
)

// OperationService thao tác trên collection erp_operations
type OperationService struct {
	*basesvc.BaseServiceMongoImpl[OperationRecord]
}

// NewOperationService tạo mới OperationService
func NewOperationService(collection *mongo.Collection) *OperationService {
	return &OperationService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[OperationRecord](collection),
	}
}

// RecentOperations lấy các operation gần nhất, mới nhất trước
func (s *OperationService) RecentOperations(ctx context.Context, status string, page, limit int64) (*basemodels.PaginateResult[OperationRecord], error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return s.FindWithPagination(ctx, filter, page, limit, opts)
}

// CountSince đếm số operation kể từ một thời điểm
func (s *OperationService) CountSince(ctx context.Context, since int64) (int64, error) {
	return s.CountDocuments(ctx, bson.M{"timestamp": bson.M{"$gte": since}})
}

// FailedSince lấy các operation lỗi kể từ một thời điểm
func (s *OperationService) FailedSince(ctx context.Context, since int64) ([]OperationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return s.Find(ctx, bson.M{
		"status":    StatusFailed,
		"timestamp": bson.M{"$gte": since},
	}, opts)
}

// FailureStats tính tỉ lệ lỗi trong một cửa sổ thời gian.
// FailureRate = 0 khi không có operation nào trong cửa sổ.
func (s *OperationService) FailureStats(ctx context.Context, window time.Duration) (*FailureStats, error) {
	since := time.Now().Add(-window).UnixMilli()
	total, err := s.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}
	failed, err := s.CountDocuments(ctx, bson.M{
		"status":    StatusFailed,
		"timestamp": bson.M{"$gte": since},
	})
	if err != nil {
		return nil, err
	}
	stats := &FailureStats{
		WindowMillis: window.Milliseconds(),
		Total:        total,
		Failed:       failed,
	}
	if total > 0 {
		stats.FailureRate = float64(failed) / float64(total)
	}
	return stats, nil
}

// MarkStuckAsFailed chuyển các operation in_progress quá lâu sang failed.
// Trả về số operation được chuyển.
func (s *OperationService) MarkStuckAsFailed(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout).UnixMilli()
	filter := bson.M{
		"status":    StatusInProgress,
		"startedAt": bson.M{"$lt": cutoff, "$gt": 0},
	}
	update := bson.M{
		"$set": bson.M{
			"status":      StatusFailed,
			"error":       "Operation quá thời gian xử lý, được hệ thống đánh dấu failed",
			"completedAt": time.Now().UnixMilli(),
			"updatedAt":   time.Now().UnixMilli(),
		},
	}
	return s.UpdateMany(ctx, filter, update, nil)
}

// HealthService thao tác trên collection system_health
type HealthService struct {
	*basesvc.BaseServiceMongoImpl[HealthSample]
}

// NewHealthService tạo mới HealthService
func NewHealthService(collection *mongo.Collection) *HealthService {
	return &HealthService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[HealthSample](collection),
	}
}

// LatestSample lấy mẫu sức khỏe mới nhất
func (s *HealthService) LatestSample(ctx context.Context) (*HealthSample, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	sample, err := s.FindOne(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// SamplesSince lấy các mẫu kể từ một thời điểm, cũ nhất trước
func (s *HealthService) SamplesSince(ctx context.Context, since int64) ([]HealthSample, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	return s.Find(ctx, bson.M{"timestamp": bson.M{"$gte": since}}, opts)
}

// ResourceSaturated kiểm tra mẫu mới nhất có vượt ngưỡng tài nguyên không.
// Trả về tên tài nguyên vượt ngưỡng (cpu/memory/disk) hoặc chuỗi rỗng.
func (s *HealthService) ResourceSaturated(ctx context.Context, threshold float64) (string, float64, error) {
	sample, err := s.LatestSample(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", 0, nil
		}
		return "", 0, err
	}
	switch {
	case sample.CPUPercent >= threshold:
		return "cpu", sample.CPUPercent, nil
	case sample.MemoryPercent >= threshold:
		return "memory", sample.MemoryPercent, nil
	case sample.DiskPercent >= threshold:
		return "disk", sample.DiskPercent, nil
	}
	return "", 0, nil
}

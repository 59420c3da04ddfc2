// Package monitor theo dõi hoạt động nghiệp vụ (erp_operations) và sức khỏe
// hệ thống (system_health): đếm thao tác lỗi, tính failure rate, lấy mẫu
// CPU/memory/disk định kỳ và dọn các thao tác bị treo.
package monitor

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trạng thái của một operation nghiệp vụ
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// OperationRecord lưu một thao tác nghiệp vụ trong collection erp_operations
type OperationRecord struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`

	OperationType string `json:"operationType" bson:"operationType" index:"single"`
	Status        string `json:"status" bson:"status" index:"single,compound:operation_status_time"`
	Collection    string `json:"collection,omitempty" bson:"collection,omitempty"`
	EntityID      string `json:"entityId,omitempty" bson:"entityId,omitempty"`
	UserID        string `json:"userId,omitempty" bson:"userId,omitempty"`

	StartedAt      int64  `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt    int64  `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	DurationMillis int64  `json:"durationMillis,omitempty" bson:"durationMillis,omitempty"`
	Error          string `json:"error,omitempty" bson:"error,omitempty"`

	Timestamp int64 `json:"timestamp" bson:"timestamp" index:"single,order:-1,compound:operation_status_time"`
	CreatedAt int64 `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// HealthSample lưu một mẫu sức khỏe hệ thống trong collection system_health.
// TTL 7 ngày để collection không phình.
type HealthSample struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`

	CPUPercent    float64 `json:"cpuPercent" bson:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent" bson:"memoryPercent"`
	DiskPercent   float64 `json:"diskPercent" bson:"diskPercent"`
	DBConnected   bool    `json:"dbConnected" bson:"dbConnected"`
	DBPingMillis  int64   `json:"dbPingMillis" bson:"dbPingMillis"`

	Timestamp int64 `json:"timestamp" bson:"timestamp" index:"single,order:-1"`
	CreatedAt int64 `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	// SampledAt dùng cho TTL index (time.Time vì TTL cần kiểu date)
	SampledAt primitive.DateTime `json:"sampledAt" bson:"sampledAt" index:"ttl:604800"`
}

// FailureStats tổng hợp tỉ lệ lỗi trong một cửa sổ thời gian
type FailureStats struct {
	WindowMillis int64   `json:"windowMillis"`
	Total        int64   `json:"total"`
	Failed       int64   `json:"failed"`
	FailureRate  float64 `json:"failureRate"` // 0..1, 0 nếu Total = 0
}

// Package notification - Notification Hub: đánh giá định kỳ các rule cảnh báo
// trên dữ liệu vận hành, lưu notification và phân phối qua các kênh.
package notification

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Các mức severity của notification
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Tên các rule cảnh báo dựng sẵn
const (
	RuleOperationFailed    = "operation_failed"
	RuleFailureRate        = "failure_rate"
	RuleResourceSaturation = "resource_saturation"
	RuleUpstreamSilence    = "upstream_silence"
)

// SeverityPriority mapping (1 = highest priority)
// Dùng để sort notification khi hiển thị - priority thấp hơn = quan trọng hơn
var SeverityPriority = map[string]int{
	SeverityCritical: 1,
	SeverityWarning:  2,
	SeverityInfo:     3,
}

// SeverityThrottleSeconds mapping
// Thời gian throttle (giây) giữa các custom notification cùng severity
// 0 = không throttle
var SeverityThrottleSeconds = map[string]int{
	SeverityCritical: 0,
	SeverityWarning:  60,
	SeverityInfo:     300,
}

// GetPriorityFromSeverity tính priority từ severity
// Trả về priority (1-3), default = 3 (info)
func GetPriorityFromSeverity(severity string) int {
	priority := SeverityPriority[severity]
	if priority == 0 {
		return 3
	}
	return priority
}

// GetRecommendedChannels trả về danh sách kênh phân phối cho severity.
// Critical đi qua tất cả các kênh, còn lại chỉ lưu + realtime.
func GetRecommendedChannels(severity string) []string {
	switch severity {
	case SeverityCritical:
		return []string{"email", "webhook"}
	default:
		return nil
	}
}

// Notification lưu một cảnh báo trong collection notifications
type Notification struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`

	Type     string                 `json:"type" bson:"type" index:"single"` // tên rule hoặc custom type
	Severity string                 `json:"severity" bson:"severity" index:"single"`
	Title    string                 `json:"title" bson:"title"`
	Message  string                 `json:"message" bson:"message"`
	Data     map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`

	Read      bool  `json:"read" bson:"read" index:"single"`
	Timestamp int64 `json:"timestamp" bson:"timestamp" index:"single,order:-1"`
	CreatedAt int64 `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Settings cấu hình runtime của hub, thay đổi được qua API không cần restart
type Settings struct {
	Enabled              bool            `json:"enabled"`
	EnabledRules         map[string]bool `json:"enabledRules"`
	FailureRateThreshold float64         `json:"failureRateThreshold"` // 0..1
	ResourceThreshold    float64         `json:"resourceThreshold"`    // phần trăm
	EmailEnabled         bool            `json:"emailEnabled"`
	WebhookEnabled       bool            `json:"webhookEnabled"`
}

// DefaultSettings trả về settings mặc định của hub
func DefaultSettings(failureRateThreshold, resourceThreshold float64) Settings {
	if failureRateThreshold <= 0 || failureRateThreshold > 1 {
		failureRateThreshold = 0.2
	}
	if resourceThreshold <= 0 || resourceThreshold > 100 {
		resourceThreshold = 85
	}
	return Settings{
		Enabled: true,
		EnabledRules: map[string]bool{
			RuleOperationFailed:    true,
			RuleFailureRate:        true,
			RuleResourceSaturation: true,
			RuleUpstreamSilence:    true,
		},
		FailureRateThreshold: failureRateThreshold,
		ResourceThreshold:    resourceThreshold,
		EmailEnabled:         true,
		WebhookEnabled:       true,
	}
}

// NotificationStats tổng hợp số lượng notification theo severity
type NotificationStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	BySeverity map[string]int64 `json:"bySeverity"`
}

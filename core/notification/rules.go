// Package notification - các rule cảnh báo dựng sẵn của hub.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/tanush-em/ERP/core/monitor"
	"github.com/tanush-em/ERP/core/watcher"
)

// Cửa sổ thời gian và cooldown của từng rule
const (
	operationFailedWindow   = 5 * time.Minute
	operationFailedCooldown = 300 * time.Second

	failureRateWindow   = time.Hour
	failureRateMinOps   = int64(5)
	failureRateCooldown = 900 * time.Second

	resourceCooldown = 600 * time.Second

	silenceOpsWindow     = 10 * time.Minute
	silenceFailureWindow = 5 * time.Minute
	silenceCooldown      = 300 * time.Second
)

// Rule là một rule cảnh báo: Evaluate trả về notification cần phát
// hoặc nil nếu điều kiện chưa thỏa
type Rule struct {
	Name     string
	Cooldown time.Duration
	Evaluate func(ctx context.Context) (*Notification, error)
}

// ShouldFireFailureRate quyết định rule failure_rate có kích hoạt không.
// Cần tối thiểu minOps operation trong cửa sổ để tránh cảnh báo nhiễu
// khi mẫu quá nhỏ. Hàm thuần.
func ShouldFireFailureRate(stats monitor.FailureStats, threshold float64, minOps int64) bool {
	if stats.Total < minOps {
		return false
	}
	return stats.FailureRate >= threshold
}

// ShouldFireUpstreamSilence quyết định rule upstream_silence có kích hoạt không:
// không có operation nào trong cửa sổ VÀ có ít nhất một lần mất kết nối stream
// gần đây. Hàm thuần.
func ShouldFireUpstreamSilence(opsInWindow int64, connFailures int) bool {
	return opsInWindow == 0 && connFailures >= 1
}

// NewOperationFailedRule cảnh báo khi có operation lỗi trong 5 phút gần nhất
func NewOperationFailedRule(operations *monitor.OperationService) Rule {
	return Rule{
		Name:     RuleOperationFailed,
		Cooldown: operationFailedCooldown,
		Evaluate: func(ctx context.Context) (*Notification, error) {
			since := time.Now().Add(-operationFailedWindow).UnixMilli()
			failed, err := operations.FailedSince(ctx, since)
			if err != nil {
				return nil, err
			}
			if len(failed) == 0 {
				return nil, nil
			}
			latest := failed[0]
			return &Notification{
				Type:     RuleOperationFailed,
				Severity: SeverityWarning,
				Title:    "Operation thất bại",
				Message:  fmt.Sprintf("%d operation thất bại trong 5 phút gần nhất, gần nhất: %s", len(failed), latest.OperationType),
				Data: map[string]interface{}{
					"failedCount":     len(failed),
					"latestOperation": latest.OperationType,
					"latestError":     latest.Error,
				},
			}, nil
		},
	}
}

// NewFailureRateRule cảnh báo critical khi tỉ lệ lỗi trong 1 giờ vượt ngưỡng
func NewFailureRateRule(operations *monitor.OperationService, threshold func() float64) Rule {
	return Rule{
		Name:     RuleFailureRate,
		Cooldown: failureRateCooldown,
		Evaluate: func(ctx context.Context) (*Notification, error) {
			stats, err := operations.FailureStats(ctx, failureRateWindow)
			if err != nil {
				return nil, err
			}
			limit := threshold()
			if !ShouldFireFailureRate(*stats, limit, failureRateMinOps) {
				return nil, nil
			}
			return &Notification{
				Type:     RuleFailureRate,
				Severity: SeverityCritical,
				Title:    "Tỉ lệ operation lỗi vượt ngưỡng",
				Message:  fmt.Sprintf("Tỉ lệ lỗi %.1f%% trong 1 giờ gần nhất (ngưỡng %.1f%%, %d/%d operation)", stats.FailureRate*100, limit*100, stats.Failed, stats.Total),
				Data: map[string]interface{}{
					"failureRate": stats.FailureRate,
					"threshold":   limit,
					"failed":      stats.Failed,
					"total":       stats.Total,
				},
			}, nil
		},
	}
}

// NewResourceSaturationRule cảnh báo khi CPU/memory/disk vượt ngưỡng
func NewResourceSaturationRule(health *monitor.HealthService, threshold func() float64) Rule {
	return Rule{
		Name:     RuleResourceSaturation,
		Cooldown: resourceCooldown,
		Evaluate: func(ctx context.Context) (*Notification, error) {
			limit := threshold()
			resource, percent, err := health.ResourceSaturated(ctx, limit)
			if err != nil {
				return nil, err
			}
			if resource == "" {
				return nil, nil
			}
			return &Notification{
				Type:     RuleResourceSaturation,
				Severity: SeverityWarning,
				Title:    "Tài nguyên hệ thống sắp cạn",
				Message:  fmt.Sprintf("Mức sử dụng %s đạt %.1f%% (ngưỡng %.1f%%)", resource, percent, limit),
				Data: map[string]interface{}{
					"resource":  resource,
					"percent":   percent,
					"threshold": limit,
				},
			}, nil
		},
	}
}

// NewUpstreamSilenceRule cảnh báo critical khi pipeline im lặng bất thường:
// không có operation nào trong 10 phút và change stream vừa mất kết nối
func NewUpstreamSilenceRule(operations *monitor.OperationService, w *watcher.Watcher) Rule {
	return Rule{
		Name:     RuleUpstreamSilence,
		Cooldown: silenceCooldown,
		Evaluate: func(ctx context.Context) (*Notification, error) {
			opsSince := time.Now().Add(-silenceOpsWindow).UnixMilli()
			opsCount, err := operations.CountSince(ctx, opsSince)
			if err != nil {
				return nil, err
			}
			failureSince := time.Now().Add(-silenceFailureWindow).UnixMilli()
			connFailures := w.ConnectionFailuresSince(failureSince)

			if !ShouldFireUpstreamSilence(opsCount, connFailures) {
				return nil, nil
			}
			return &Notification{
				Type:     RuleUpstreamSilence,
				Severity: SeverityCritical,
				Title:    "Pipeline im lặng bất thường",
				Message:  fmt.Sprintf("Không có operation nào trong 10 phút và %d lần mất kết nối change stream trong 5 phút", connFailures),
				Data: map[string]interface{}{
					"connectionFailures": connFailures,
					"opsWindowMinutes":   10,
				},
			}, nil
		},
	}
}

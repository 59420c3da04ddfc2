package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanush-em/ERP/core/monitor"
)

func TestShouldFireFailureRateBoundary(t *testing.T) {
	// Đúng ngưỡng 20% phải kích hoạt
	assert.True(t, ShouldFireFailureRate(monitor.FailureStats{Total: 10, Failed: 2, FailureRate: 0.2}, 0.2, 5))
	// Dưới ngưỡng không kích hoạt
	assert.False(t, ShouldFireFailureRate(monitor.FailureStats{Total: 10, Failed: 1, FailureRate: 0.1}, 0.2, 5))
	// Trên ngưỡng kích hoạt
	assert.True(t, ShouldFireFailureRate(monitor.FailureStats{Total: 10, Failed: 5, FailureRate: 0.5}, 0.2, 5))
}

func TestShouldFireFailureRateMinOps(t *testing.T) {
	// 2/4 = 50% nhưng chưa đủ 5 operation -> không kích hoạt
	assert.False(t, ShouldFireFailureRate(monitor.FailureStats{Total: 4, Failed: 2, FailureRate: 0.5}, 0.2, 5))
	// Đủ 5 operation -> kích hoạt
	assert.True(t, ShouldFireFailureRate(monitor.FailureStats{Total: 5, Failed: 2, FailureRate: 0.4}, 0.2, 5))
	// Không có operation nào -> không kích hoạt
	assert.False(t, ShouldFireFailureRate(monitor.FailureStats{}, 0.2, 5))
}

func TestShouldFireUpstreamSilence(t *testing.T) {
	assert.True(t, ShouldFireUpstreamSilence(0, 1))
	assert.True(t, ShouldFireUpstreamSilence(0, 3))
	// Có operation -> pipeline vẫn sống
	assert.False(t, ShouldFireUpstreamSilence(1, 3))
	// Im lặng nhưng không mất kết nối -> có thể chỉ là giờ thấp điểm
	assert.False(t, ShouldFireUpstreamSilence(0, 0))
}

func TestHubCooldown(t *testing.T) {
	hub := NewHub(nil, nil, DefaultSettings(0.2, 85), time.Minute)
	now := time.Now()

	// Chưa fire lần nào -> được fire
	assert.True(t, hub.cooldownElapsed(RuleOperationFailed, 300*time.Second, now))

	hub.markFired(RuleOperationFailed, now)

	// Trong cooldown -> không fire
	assert.False(t, hub.cooldownElapsed(RuleOperationFailed, 300*time.Second, now.Add(299*time.Second)))
	// Hết cooldown -> fire lại được
	assert.True(t, hub.cooldownElapsed(RuleOperationFailed, 300*time.Second, now.Add(300*time.Second)))

	// Cooldown của rule khác độc lập
	assert.True(t, hub.cooldownElapsed(RuleFailureRate, 900*time.Second, now.Add(time.Second)))
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings(0.2, 85)
	assert.True(t, s.Enabled)
	assert.Equal(t, 0.2, s.FailureRateThreshold)
	assert.Equal(t, 85.0, s.ResourceThreshold)
	for _, rule := range []string{RuleOperationFailed, RuleFailureRate, RuleResourceSaturation, RuleUpstreamSilence} {
		assert.True(t, s.EnabledRules[rule], rule)
	}

	// Giá trị không hợp lệ rơi về mặc định
	fallback := DefaultSettings(-1, 200)
	assert.Equal(t, 0.2, fallback.FailureRateThreshold)
	assert.Equal(t, 85.0, fallback.ResourceThreshold)
}

func TestUpdateSettingsPartial(t *testing.T) {
	hub := NewHub(nil, nil, DefaultSettings(0.2, 85), time.Minute)

	threshold := 0.5
	enabled := false
	updated, err := hub.UpdateSettings(SettingsUpdate{
		FailureRateThreshold: &threshold,
		Enabled:              &enabled,
		EnabledRules:         map[string]bool{RuleResourceSaturation: false},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.5, updated.FailureRateThreshold)
	assert.False(t, updated.Enabled)
	assert.False(t, updated.EnabledRules[RuleResourceSaturation])
	// Các field không nằm trong update giữ nguyên
	assert.Equal(t, 85.0, updated.ResourceThreshold)
	assert.True(t, updated.EnabledRules[RuleOperationFailed])
}

func TestUpdateSettingsValidation(t *testing.T) {
	hub := NewHub(nil, nil, DefaultSettings(0.2, 85), time.Minute)

	bad := 1.5
	_, err := hub.UpdateSettings(SettingsUpdate{FailureRateThreshold: &bad})
	assert.Error(t, err)

	badResource := 0.0
	_, err = hub.UpdateSettings(SettingsUpdate{ResourceThreshold: &badResource})
	assert.Error(t, err)

	// Update lỗi không làm thay đổi settings
	assert.Equal(t, 0.2, hub.Settings().FailureRateThreshold)
	assert.Equal(t, 85.0, hub.Settings().ResourceThreshold)
}

func TestUpdateSettingsIgnoresUnknownRules(t *testing.T) {
	hub := NewHub(nil, nil, DefaultSettings(0.2, 85), time.Minute)

	updated, err := hub.UpdateSettings(SettingsUpdate{EnabledRules: map[string]bool{"no_such_rule": true}})
	require.NoError(t, err)
	_, ok := updated.EnabledRules["no_such_rule"]
	assert.False(t, ok)
}

func TestSettingsSnapshotIsolated(t *testing.T) {
	hub := NewHub(nil, nil, DefaultSettings(0.2, 85), time.Minute)
	snapshot := hub.Settings()
	snapshot.EnabledRules[RuleFailureRate] = false

	// Sửa snapshot không ảnh hưởng settings thật
	assert.True(t, hub.Settings().EnabledRules[RuleFailureRate])
}

func TestGetPriorityFromSeverity(t *testing.T) {
	assert.Equal(t, 1, GetPriorityFromSeverity(SeverityCritical))
	assert.Equal(t, 2, GetPriorityFromSeverity(SeverityWarning))
	assert.Equal(t, 3, GetPriorityFromSeverity(SeverityInfo))
	assert.Equal(t, 3, GetPriorityFromSeverity("unknown"))
}

func TestGetRecommendedChannels(t *testing.T) {
	assert.Equal(t, []string{"email", "webhook"}, GetRecommendedChannels(SeverityCritical))
	assert.Nil(t, GetRecommendedChannels(SeverityWarning))
	assert.Nil(t, GetRecommendedChannels(SeverityInfo))
}

// Package notification - Hub đánh giá rule định kỳ và phân phối notification.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tanush-em/ERP/core/common"
	"github.com/tanush-em/ERP/core/logger"
	"github.com/tanush-em/ERP/core/notification/channels"
)

// Chu kỳ đánh giá rule và backoff khi chu kỳ gặp lỗi
const (
	defaultCheckInterval = 60 * time.Second
	errorBackoff         = 120 * time.Second
)

// Broadcaster phát notification tới các client realtime.
// Realtime broker implement interface này.
type Broadcaster interface {
	BroadcastNotification(n Notification)
}

// Hub chạy vòng lặp đánh giá rule, lưu notification và phân phối
// qua các kênh email/webhook/realtime
type Hub struct {
	store       *Store
	rules       []Rule
	broadcaster Broadcaster
	log         *logrus.Logger

	checkInterval time.Duration
	emailCfg      channels.SMTPConfig
	emailTo       []string
	webhookURL    string

	settingsMu sync.RWMutex
	settings   Settings

	firedMu   sync.Mutex
	lastFired map[string]time.Time
}

// NewHub tạo mới notification Hub
func NewHub(store *Store, rules []Rule, settings Settings, checkInterval time.Duration) *Hub {
	if checkInterval < time.Second {
		checkInterval = defaultCheckInterval
	}
	return &Hub{
		store:         store,
		rules:         rules,
		log:           logger.GetAppLogger(),
		checkInterval: checkInterval,
		settings:      settings,
		lastFired:     map[string]time.Time{},
	}
}

// SetBroadcaster gắn realtime broadcaster (gọi khi khởi tạo app)
func (h *Hub) SetBroadcaster(b Broadcaster) {
	h.broadcaster = b
}

// SetEmailChannel cấu hình kênh email
func (h *Hub) SetEmailChannel(cfg channels.SMTPConfig, recipients []string) {
	h.emailCfg = cfg
	h.emailTo = recipients
}

// SetWebhookChannel cấu hình kênh webhook
func (h *Hub) SetWebhookChannel(url string) {
	h.webhookURL = url
}

// Settings trả về snapshot settings hiện tại
func (h *Hub) Settings() Settings {
	h.settingsMu.RLock()
	defer h.settingsMu.RUnlock()
	out := h.settings
	out.EnabledRules = make(map[string]bool, len(h.settings.EnabledRules))
	for k, v := range h.settings.EnabledRules {
		out.EnabledRules[k] = v
	}
	return out
}

// SettingsUpdate là partial update cho settings, field nil giữ nguyên giá trị cũ
type SettingsUpdate struct {
	Enabled              *bool           `json:"enabled"`
	EnabledRules         map[string]bool `json:"enabledRules"`
	FailureRateThreshold *float64        `json:"failureRateThreshold"`
	ResourceThreshold    *float64        `json:"resourceThreshold"`
	EmailEnabled         *bool           `json:"emailEnabled"`
	WebhookEnabled       *bool           `json:"webhookEnabled"`
}

// UpdateSettings áp partial update, có hiệu lực từ chu kỳ đánh giá tiếp theo
func (h *Hub) UpdateSettings(update SettingsUpdate) (Settings, error) {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()

	if update.FailureRateThreshold != nil {
		if *update.FailureRateThreshold <= 0 || *update.FailureRateThreshold > 1 {
			return Settings{}, common.NewError(common.ErrCodeValidationInput, "failureRateThreshold phải nằm trong (0, 1]", common.StatusBadRequest, nil)
		}
		h.settings.FailureRateThreshold = *update.FailureRateThreshold
	}
	if update.ResourceThreshold != nil {
		if *update.ResourceThreshold <= 0 || *update.ResourceThreshold > 100 {
			return Settings{}, common.NewError(common.ErrCodeValidationInput, "resourceThreshold phải nằm trong (0, 100]", common.StatusBadRequest, nil)
		}
		h.settings.ResourceThreshold = *update.ResourceThreshold
	}
	if update.Enabled != nil {
		h.settings.Enabled = *update.Enabled
	}
	if update.EmailEnabled != nil {
		h.settings.EmailEnabled = *update.EmailEnabled
	}
	if update.WebhookEnabled != nil {
		h.settings.WebhookEnabled = *update.WebhookEnabled
	}
	for name, enabled := range update.EnabledRules {
		if _, known := h.settings.EnabledRules[name]; known {
			h.settings.EnabledRules[name] = enabled
		}
	}
	// snapshot inline: không gọi h.Settings() vì đang giữ write lock
	out := h.settings
	out.EnabledRules = make(map[string]bool, len(h.settings.EnabledRules))
	for k, v := range h.settings.EnabledRules {
		out.EnabledRules[k] = v
	}
	return out, nil
}

// FailureRateThreshold đọc ngưỡng failure rate hiện tại (dùng bởi rule closure)
func (h *Hub) FailureRateThreshold() float64 {
	h.settingsMu.RLock()
	defer h.settingsMu.RUnlock()
	return h.settings.FailureRateThreshold
}

// ResourceThreshold đọc ngưỡng tài nguyên hiện tại (dùng bởi rule closure)
func (h *Hub) ResourceThreshold() float64 {
	h.settingsMu.RLock()
	defer h.settingsMu.RUnlock()
	return h.settings.ResourceThreshold
}

// Start bắt đầu vòng lặp đánh giá rule. Chu kỳ gặp lỗi sẽ giãn ra
// errorBackoff trước khi đánh giá lại.
func (h *Hub) Start(ctx context.Context) {
	h.log.WithFields(map[string]interface{}{
		"interval": h.checkInterval.String(),
		"rules":    len(h.rules),
	}).Info("🔄 [NOTIFICATION_HUB] Starting Notification Hub...")

	timer := time.NewTimer(h.checkInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("🔄 [NOTIFICATION_HUB] Notification Hub stopped")
			return
		case <-timer.C:
			hadError := h.runCycle(ctx)
			if hadError {
				timer.Reset(errorBackoff)
			} else {
				timer.Reset(h.checkInterval)
			}
		}
	}
}

// runCycle đánh giá toàn bộ rule một lượt. Trả về true nếu có rule lỗi.
func (h *Hub) runCycle(ctx context.Context) (hadError bool) {
	defer func() {
		if r := recover(); r != nil {
			h.log.WithField("panic", r).Error("🔄 [NOTIFICATION_HUB] Panic trong chu kỳ đánh giá rule")
			hadError = true
		}
	}()

	settings := h.Settings()
	if !settings.Enabled {
		return false
	}

	now := time.Now()
	for _, rule := range h.rules {
		if !settings.EnabledRules[rule.Name] {
			continue
		}
		if !h.cooldownElapsed(rule.Name, rule.Cooldown, now) {
			continue
		}
		n, err := rule.Evaluate(ctx)
		if err != nil {
			h.log.WithError(err).WithField("rule", rule.Name).Error("🔄 [NOTIFICATION_HUB] Rule đánh giá lỗi")
			hadError = true
			continue
		}
		if n == nil {
			continue
		}
		h.markFired(rule.Name, now)
		h.dispatch(ctx, *n, settings)
	}
	return hadError
}

// cooldownElapsed kiểm tra rule đã hết cooldown chưa
func (h *Hub) cooldownElapsed(ruleName string, cooldown time.Duration, now time.Time) bool {
	h.firedMu.Lock()
	defer h.firedMu.Unlock()
	last, ok := h.lastFired[ruleName]
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}

func (h *Hub) markFired(ruleName string, now time.Time) {
	h.firedMu.Lock()
	defer h.firedMu.Unlock()
	h.lastFired[ruleName] = now
}

// SendCustom phát một notification tùy ý, bỏ qua rule và cooldown.
// Dùng cho cảnh báo thủ công từ API.
func (h *Hub) SendCustom(ctx context.Context, n Notification) (*Notification, error) {
	if n.Type == "" || n.Message == "" {
		return nil, common.ErrRequiredField
	}
	switch n.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	case "":
		n.Severity = SeverityInfo
	default:
		return nil, common.NewError(common.ErrCodeValidationInput, "severity không hợp lệ", common.StatusBadRequest, nil)
	}
	created, err := h.persistAndFanOut(ctx, n, h.Settings())
	if err != nil {
		return nil, err
	}
	return created, nil
}

// dispatch lưu notification và phân phối qua các kênh, mỗi kênh lỗi
// chỉ được log chứ không chặn kênh khác
func (h *Hub) dispatch(ctx context.Context, n Notification, settings Settings) {
	if _, err := h.persistAndFanOut(ctx, n, settings); err != nil {
		h.log.WithError(err).WithField("type", n.Type).Error("🔄 [NOTIFICATION_HUB] Không lưu được notification")
	}
}

func (h *Hub) persistAndFanOut(ctx context.Context, n Notification, settings Settings) (*Notification, error) {
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixMilli()
	}
	created, err := h.store.InsertOne(ctx, n)
	if err != nil {
		return nil, err
	}

	h.log.WithFields(map[string]interface{}{
		"type":     created.Type,
		"severity": created.Severity,
	}).Info("🔄 [NOTIFICATION_HUB] Đã phát notification")

	if h.broadcaster != nil {
		h.broadcaster.BroadcastNotification(created)
	}

	// Critical đi thêm qua các kênh ngoài hệ thống
	for _, channel := range GetRecommendedChannels(created.Severity) {
		switch channel {
		case "email":
			if settings.EmailEnabled && len(h.emailTo) > 0 {
				if err := channels.SendEmail(ctx, h.emailCfg, h.emailTo, created.Title, created.Message); err != nil {
					h.log.WithError(err).Error("🔄 [NOTIFICATION_HUB] Gửi email cảnh báo thất bại")
				}
			}
		case "webhook":
			if settings.WebhookEnabled && h.webhookURL != "" {
				payload := map[string]interface{}{
					"type":      created.Type,
					"severity":  created.Severity,
					"title":     created.Title,
					"message":   created.Message,
					"data":      created.Data,
					"timestamp": created.Timestamp,
				}
				if err := channels.SendWebhook(ctx, h.webhookURL, payload); err != nil {
					h.log.WithError(err).Error("🔄 [NOTIFICATION_HUB] Gửi webhook cảnh báo thất bại")
				}
			}
		}
	}

	return &created, nil
}

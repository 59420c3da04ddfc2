package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng
// Nó chứa thông tin cơ sở dữ liệu và cấu hình của các subsystem nền
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:":8080"`                // Địa chỉ server
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI,required"`           // URL kết nối cơ sở dữ liệu
	MongoDB_DBName        string `env:"MONGODB_DBNAME,required"`                   // Tên cơ sở dữ liệu ERP
	CORS_Origins          string `env:"CORS_ORIGINS" envDefault:"*"`               // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"` // Cho phép gửi credentials

	// Mutation Watcher Configuration
	WatchedCollections string `env:"WATCHED_COLLECTIONS" envDefault:"students,courses,enrollments,attendance,grades,fees,timetable,announcements,users,leave_requests"` // Danh sách collections cần watch (phân cách bởi dấu phẩy)

	// Audit Configuration
	AuditRetentionDays int `env:"AUDIT_RETENTION_DAYS" envDefault:"365"` // Số ngày giữ lại change records

	// Notification Hub Configuration
	HubCheckIntervalSeconds int     `env:"HUB_CHECK_INTERVAL_SECONDS" envDefault:"60"`  // Chu kỳ đánh giá rules (giây)
	HubFailureRateThreshold float64 `env:"HUB_FAILURE_RATE_THRESHOLD" envDefault:"0.2"` // Ngưỡng failure rate (0..1)
	HubResourceThreshold    float64 `env:"HUB_RESOURCE_THRESHOLD" envDefault:"85"`      // Ngưỡng CPU/Memory/Disk (%)

	// Real-Time Broker Configuration
	SessionIdleTimeoutSeconds int `env:"SESSION_IDLE_TIMEOUT_SECONDS" envDefault:"300"` // Thời gian idle tối đa trước khi reap session (giây)
	SessionReapIntervalSeconds int `env:"SESSION_REAP_INTERVAL_SECONDS" envDefault:"60"` // Chu kỳ quét session idle (giây)

	// Health Sampler Configuration
	HealthSampleIntervalSeconds int `env:"HEALTH_SAMPLE_INTERVAL_SECONDS" envDefault:"30"` // Chu kỳ lấy mẫu tài nguyên (giây)

	// Email Delivery Configuration (optional - dùng cho critical alerts)
	SMTPHost     string `env:"SMTP_HOST"`     // SMTP host (optional)
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"` // SMTP port
	SMTPUsername string `env:"SMTP_USERNAME"` // SMTP username (optional)
	SMTPPassword string `env:"SMTP_PASSWORD"` // SMTP password (optional)
	AlertEmailFrom string `env:"ALERT_EMAIL_FROM"` // Địa chỉ gửi alert email (optional)
	AlertEmailTo   string `env:"ALERT_EMAIL_TO"`   // Danh sách địa chỉ nhận alert, phân cách bởi dấu phẩy (optional)

	// Webhook Delivery Configuration (optional - dùng cho critical alerts)
	AlertWebhookURL string `env:"ALERT_WEBHOOK_URL"` // URL webhook nhận alert (optional)

	// TLS/HTTPS Configuration
	EnableTLS   bool   `env:"ENABLE_TLS" envDefault:"false"` // Bật HTTPS
	TLSCertFile string `env:"TLS_CERT_FILE"`                 // Đường dẫn đến file certificate (.crt hoặc .pem)
	TLSKeyFile  string `env:"TLS_KEY_FILE"`                  // Đường dẫn đến file private key (.key)
}

// WatchedCollectionList trả về danh sách collections cần watch đã được trim
func (c *Configuration) WatchedCollectionList() []string {
	parts := strings.Split(c.WatchedCollections, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			list = append(list, p)
		}
	}
	return list
}

// AlertEmailRecipients trả về danh sách địa chỉ nhận alert email
func (c *Configuration) AlertEmailRecipients() []string {
	if c.AlertEmailTo == "" {
		return nil
	}
	parts := strings.Split(c.AlertEmailTo, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			list = append(list, p)
		}
	}
	return list
}

// getEnvPath trả về đường dẫn đến file env dựa trên môi trường
func getEnvPath() string {
	// Mặc định sử dụng môi trường development
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Tìm thư mục config
	currentDir, err := os.Getwd()
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể lấy được thư mục hiện tại: %v\n", err)
		return ""
	}

	// Tìm thư mục config/env
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			// Tìm thấy thư mục config/env
			envPath := filepath.Join(envDir, fmt.Sprintf("%s.env", env))
			return envPath
		}

		// Đi lên thư mục cha
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig sẽ đọc dữ liệu cấu hình từ file env được cung cấp
func NewConfig(files ...string) *Configuration {
	envPath := getEnvPath()
	if envPath == "" {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không tìm thấy thư mục config/env\n")
		return nil
	}

	err := godotenv.Load(envPath)
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể load file env tại %s: %v\n", envPath, err)
		return nil
	}

	cfg := Configuration{}
	err = env.Parse(&cfg)
	if err != nil {
		fmt.Printf("Lỗi khi parse config: %+v\n", err)
		return nil
	}

	return &cfg
}

// Package channels chứa các kênh phân phối notification ra ngoài hệ thống.
package channels

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig cấu hình kênh email
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SendEmail gửi email cảnh báo tới danh sách người nhận
func SendEmail(ctx context.Context, cfg SMTPConfig, recipients []string, subject, message string) error {
	if cfg.Host == "" || len(recipients) == 0 {
		return fmt.Errorf("email channel chưa được cấu hình")
	}

	htmlContent := fmt.Sprintf(
		`<div style="font-family:sans-serif"><h3>%s</h3><p>%s</p></div>`,
		subject, message,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From))
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlContent)

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return dialer.DialAndSend(msg)
}

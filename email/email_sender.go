// Package email sends new-report notifications to the registered recipient
// list.
package email

import (
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"road-report-service/config"
	"road-report-service/models"
)

// Sender delivers report notification emails via SendGrid.
type Sender struct {
	config *config.Config
	client *sendgrid.Client
}

// NewSender creates a new email sender.
func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		config: cfg,
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}
}

// Configured reports whether outbound email credentials are present. When
// they are not, notification sending is skipped silently.
func (s *Sender) Configured() bool {
	return s.config.SendGridAPIKey != ""
}

// SendReportNotification composes one message for a new report and sends it
// to all recipients as a single combined send.
func (s *Sender) SendReportNotification(recipients []string, report *models.Report) error {
	from := mail.NewEmail(s.config.SendGridFromName, s.config.SendGridFromEmail)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = Subject(report)

	p := mail.NewPersonalization()
	for _, recipient := range recipients {
		p.AddTos(mail.NewEmail(recipient, recipient))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", Body(report, s.config.AdminBaseURL)))

	response, err := s.client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d: %s", response.StatusCode, response.Body)
	}

	log.Infof("Notification email sent to %d recipients, status %d", len(recipients), response.StatusCode)
	return nil
}

// Subject builds the notification subject, which names the defect category.
func Subject(report *models.Report) string {
	return fmt.Sprintf("【道路通報】新規通報（種別：%s）", report.Type)
}

// Body builds the plain-text notification body.
func Body(report *models.Report, adminBaseURL string) string {
	details := report.Details
	if details == "" {
		details = "記載なし"
	}

	var b strings.Builder
	b.WriteString("新しい道路通報がありましたので、お知らせします。\n\n")
	b.WriteString("----------------------------------------\n")
	b.WriteString("■ 通報内容\n")
	b.WriteString("----------------------------------------\n")
	fmt.Fprintf(&b, "・受付日時: %s\n", report.CreatedAt.Format("2006/01/02 15:04:05"))
	fmt.Fprintf(&b, "・通報種別: %s\n", report.Type)
	fmt.Fprintf(&b, "・詳細: %s\n\n", details)
	fmt.Fprintf(&b, "・場所の確認（Googleマップ）:\n%s\n\n", report.MapLink)
	if report.PhotoURL != "" {
		fmt.Fprintf(&b, "・写真の確認:\n%s\n\n", report.PhotoURL)
	} else {
		b.WriteString("・写真: なし\n\n")
	}
	b.WriteString("----------------------------------------\n")
	base := strings.TrimRight(adminBaseURL, "/")
	fmt.Fprintf(&b, "管理画面: %s/admin.html\n", base)
	fmt.Fprintf(&b, "配信設定: %s/admin_email.html\n", base)

	return b.String()
}

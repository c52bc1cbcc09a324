// Package services drives the report submission pipeline: validate, resolve
// identity, persist, then fan out notifications.
package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
	"github.com/google/uuid"

	"road-report-service/config"
	"road-report-service/database"
	"road-report-service/email"
	"road-report-service/image"
	"road-report-service/line"
	"road-report-service/models"
	"road-report-service/rabbitmq"
	"road-report-service/storage"
	"road-report-service/validation"
)

// User-visible pipeline messages.
const (
	MsgAccepted      = "通報を受け付けました。ご協力ありがとうございます。"
	MsgTokenMissing  = "アクセストークンが見つかりません。認証が必要です。"
	MsgBadStatus     = "不正なステータスです。"
	MsgRecipientReq  = "氏名とメールアドレスを入力してください"
	MsgRecipientMail = "正しいメールアドレスを入力してください"
)

// ValidationError carries the specific, user-visible reason a submission was
// rejected. It is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ErrPersistence covers any storage or database write failure. The caller
// sees a generic message; the cause is logged.
var ErrPersistence = errors.New("failed to store the report")

// reportPublisher is the subset of the RabbitMQ publisher the pipeline uses.
type reportPublisher interface {
	Publish(message interface{}) error
}

// ReportService implements the server side of the submission pipeline.
type ReportService struct {
	cfg       *config.Config
	db        *database.Database
	photos    *storage.PhotoStore
	line      *line.Client
	email     *email.Sender
	publisher reportPublisher
	photoOpts image.Options
}

// NewReportService wires the pipeline's collaborators together. publisher
// may be nil when no analysis exchange is configured.
func NewReportService(cfg *config.Config, db *database.Database, photos *storage.PhotoStore,
	lineClient *line.Client, sender *email.Sender, publisher *rabbitmq.Publisher) *ReportService {
	s := &ReportService{
		cfg:       cfg,
		db:        db,
		photos:    photos,
		line:      lineClient,
		email:     sender,
		photoOpts: image.DefaultOptions(),
	}
	if publisher != nil {
		s.publisher = publisher
	}
	return s
}

// MapLink derives the Google Maps search URL for a report location.
func MapLink(latitude, longitude float64) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%v,%v", latitude, longitude)
}

// ProcessSubmission runs one submission end to end. Any error before the
// persistence step aborts the request with no side effect. Notification
// failures after persistence are absorbed: by then the report is durably
// recorded and the citizen-facing contract is fulfilled.
func (s *ReportService) ProcessSubmission(ctx context.Context, req *models.SubmitReportRequest) (*models.SubmitReportResponse, error) {
	// The client validates before sending, but its request is
	// attacker-controlled; every rule is re-evaluated here.
	if result := validation.ValidateSubmission(req); !result.Valid {
		return nil, &ValidationError{Reason: result.Message}
	}

	if req.AccessToken == "" {
		return nil, &ValidationError{Reason: MsgTokenMissing}
	}
	reporterID, err := s.line.ResolveUserID(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	var photo *image.Payload
	if req.PhotoData != "" {
		raw, _, err := image.DecodeDataURL(req.PhotoData)
		if err != nil {
			log.Infof("Rejected undecodable photo data: %v", err)
			return nil, &ValidationError{Reason: validation.MsgPhotoBadFormat}
		}
		photo, err = image.Normalize(raw, s.photoOpts)
		if err != nil {
			log.Infof("Rejected photo that failed normalization: %v", err)
			return nil, &ValidationError{Reason: validation.MsgPhotoBadFormat}
		}
	}

	report := &models.Report{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now(),
		Status:     models.StatusUnprocessed,
		Latitude:   req.Latitude.Value,
		Longitude:  req.Longitude.Value,
		Type:       html.EscapeString(req.Type),
		Details:    html.EscapeString(req.Details),
		MapLink:    MapLink(req.Latitude.Value, req.Longitude.Value),
		ReporterID: reporterID,
	}

	// Photo store and record store are independent systems with no
	// cross-system transaction. A record-write failure after the photo
	// write leaves an orphaned object; that is a known, logged limitation.
	if photo != nil {
		objectName, publicURL, err := s.photos.Save(photo.Data)
		if err != nil {
			log.Errorf("Photo store write failed: %v", err)
			return nil, ErrPersistence
		}
		report.StoragePath = objectName
		report.PhotoURL = publicURL
	}

	if err := s.db.SaveReport(ctx, report); err != nil {
		log.Errorf("Report record write failed: %v", err)
		if report.StoragePath != "" {
			log.Warnf("Orphaned photo object left behind: %s", report.StoragePath)
		}
		return nil, ErrPersistence
	}

	lineNotified := s.notifyReporter(ctx, report)
	s.notifyRecipients(report)
	s.publishForAnalysis(report)

	return &models.SubmitReportResponse{
		Status:        "success",
		Message:       MsgAccepted,
		Timestamp:     report.CreatedAt.Format(time.RFC3339),
		ID:            report.ID,
		LineNotified:  lineNotified,
		ImageUploaded: report.PhotoURL != "",
	}, nil
}

// notifyReporter pushes the confirmation batch to the reporting user.
// Best-effort: a failure only clears the lineNotified flag.
func (s *ReportService) notifyReporter(ctx context.Context, report *models.Report) bool {
	if !s.line.PushConfigured() {
		log.Info("LINE channel token not configured, skipping push")
		return false
	}
	if err := s.line.PushMessages(ctx, report.ReporterID, line.BuildReportMessages(report)); err != nil {
		log.Errorf("LINE push failed for report %s: %v", report.ID, err)
		return false
	}
	return true
}

// notifyRecipients emails the registered recipient list. Best-effort: every
// failure is logged and swallowed.
func (s *ReportService) notifyRecipients(report *models.Report) {
	recipients, err := s.db.ListRecipients(context.Background())
	if err != nil {
		log.Errorf("Failed to load mail recipients: %v", err)
		return
	}

	var addresses []string
	for _, r := range recipients {
		if strings.Contains(r.Email, "@") {
			addresses = append(addresses, r.Email)
		}
	}
	if len(addresses) == 0 {
		log.Info("No mail recipients registered, skipping email")
		return
	}
	if !s.email.Configured() {
		log.Info("Email credentials not configured, skipping email")
		return
	}

	if err := s.email.SendReportNotification(addresses, report); err != nil {
		log.Errorf("Notification email failed for report %s: %v", report.ID, err)
	}
}

// publishForAnalysis hands the persisted report to the analysis exchange.
// Best-effort, skipped entirely when no broker is configured.
func (s *ReportService) publishForAnalysis(report *models.Report) {
	if s.publisher == nil {
		return
	}

	message := struct {
		ID        string  `json:"id"`
		Timestamp string  `json:"timestamp"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Type      string  `json:"type"`
		Details   string  `json:"details"`
		PhotoURL  string  `json:"photo_url"`
	}{
		ID:        report.ID,
		Timestamp: report.CreatedAt.Format(time.RFC3339),
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Type:      report.Type,
		Details:   report.Details,
		PhotoURL:  report.PhotoURL,
	}

	if err := s.publisher.Publish(message); err != nil {
		log.Errorf("Failed to publish report %s for analysis: %v", report.ID, err)
		return
	}
	log.Infof("Report %s published for analysis", report.ID)
}

// ListReports returns the most recent reports plus the viewport rectangle
// enclosing their locations, for the dashboard map.
func (s *ReportService) ListReports(ctx context.Context, limit int) (*models.ReportListResponse, error) {
	reports, err := s.db.ListReports(ctx, limit)
	if err != nil {
		return nil, err
	}

	resp := &models.ReportListResponse{Reports: reports}
	if len(reports) > 0 {
		rect := s2.EmptyRect()
		for _, r := range reports {
			rect = rect.AddPoint(s2.LatLngFromDegrees(r.Latitude, r.Longitude))
		}
		resp.Viewport = &models.Viewport{
			MinLatitude:  rect.Lo().Lat.Degrees(),
			MaxLatitude:  rect.Hi().Lat.Degrees(),
			MinLongitude: rect.Lo().Lng.Degrees(),
			MaxLongitude: rect.Hi().Lng.Degrees(),
		}
	}
	return resp, nil
}

// UpdateStatus flips a report's triage status.
func (s *ReportService) UpdateStatus(ctx context.Context, id, status string) error {
	if id == "" {
		return &ValidationError{Reason: MsgBadStatus}
	}
	if status != models.StatusUnprocessed && status != models.StatusProcessed {
		return &ValidationError{Reason: MsgBadStatus}
	}
	return s.db.UpdateReportStatus(ctx, id, status)
}

// ListRecipients returns the registered notification recipients.
func (s *ReportService) ListRecipients(ctx context.Context) ([]models.Recipient, error) {
	return s.db.ListRecipients(ctx)
}

// AddRecipient registers a notification recipient after basic checks.
func (s *ReportService) AddRecipient(ctx context.Context, name, email string) (*models.Recipient, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, &ValidationError{Reason: MsgRecipientReq}
	}
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Reason: MsgRecipientMail}
	}
	return s.db.AddRecipient(ctx, name, email)
}

// DeleteRecipient removes a recipient registration.
func (s *ReportService) DeleteRecipient(ctx context.Context, id string) error {
	return s.db.DeleteRecipient(ctx, id)
}

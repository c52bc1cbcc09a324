package email

import (
	"strings"
	"testing"
	"time"

	"road-report-service/config"
	"road-report-service/models"
)

func testReport() *models.Report {
	return &models.Report{
		ID:        "report-1",
		CreatedAt: time.Date(2025, 6, 1, 9, 15, 0, 0, time.Local),
		Status:    models.StatusUnprocessed,
		Latitude:  36.871,
		Longitude: 140.016,
		Type:      "陥没",
		MapLink:   "https://www.google.com/maps/search/?api=1&query=36.871,140.016",
	}
}

func TestSubjectIncludesCategory(t *testing.T) {
	subject := Subject(testReport())
	if !strings.Contains(subject, "陥没") {
		t.Errorf("subject %q does not include the category", subject)
	}
}

func TestBodyWithoutPhoto(t *testing.T) {
	report := testReport()
	body := Body(report, "https://roadreport.example/")

	for _, want := range []string{
		"2025/06/01 09:15:00",
		"陥没",
		"記載なし",
		report.MapLink,
		"・写真: なし",
		"https://roadreport.example/admin.html",
		"https://roadreport.example/admin_email.html",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBodyWithPhotoAndDetails(t *testing.T) {
	report := testReport()
	report.Details = "センターライン付近に深い穴"
	report.PhotoURL = "https://roadreport.example/photos/reports/1_abc.jpg"

	body := Body(report, "https://roadreport.example")
	if !strings.Contains(body, report.Details) {
		t.Error("body missing details")
	}
	if !strings.Contains(body, report.PhotoURL) {
		t.Error("body missing photo URL")
	}
	if strings.Contains(body, "記載なし") || strings.Contains(body, "・写真: なし") {
		t.Error("placeholders present despite details and photo")
	}
}

func TestConfigured(t *testing.T) {
	if NewSender(&config.Config{}).Configured() {
		t.Error("sender without API key reported as configured")
	}
	if !NewSender(&config.Config{SendGridAPIKey: "SG.x"}).Configured() {
		t.Error("sender with API key reported as unconfigured")
	}
}

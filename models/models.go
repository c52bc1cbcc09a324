package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Report statuses. The dashboard flips reports from 未処理 (unprocessed) to
// 処理済 (processed); no other values are stored.
const (
	StatusUnprocessed = "未処理"
	StatusProcessed   = "処理済"
)

// CategoryOther is the sentinel category that makes the details field
// mandatory.
const CategoryOther = "その他"

// Report represents one citizen road defect report.
type Report struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Type        string    `json:"type"`
	Details     string    `json:"details"`
	MapLink     string    `json:"googleMapLink"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	StoragePath string    `json:"-"`
	ReporterID  string    `json:"-"`
}

// Recipient is an email address registered for defect notifications.
type Recipient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Coordinate unmarshals from either a JSON number or a numeric string, the
// two shapes browser clients send for form coordinates.
type Coordinate struct {
	Value float64
	Valid bool
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	c.Value = v
	c.Valid = true
	return nil
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// SubmitReportRequest is the JSON body of POST /report.
type SubmitReportRequest struct {
	Latitude    Coordinate `json:"latitude"`
	Longitude   Coordinate `json:"longitude"`
	Type        string     `json:"type"`
	Details     string     `json:"details"`
	PhotoData   string     `json:"photoData,omitempty"`
	AccessToken string     `json:"accessToken"`
}

// SubmitReportResponse is the success body of POST /report.
type SubmitReportResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
	ID            string `json:"id"`
	LineNotified  bool   `json:"lineNotified"`
	ImageUploaded bool   `json:"imageUploaded"`
}

// ErrorResponse is the body of any failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ConfigResponse is the body of GET /api/config.
type ConfigResponse struct {
	LiffID string `json:"LIFF_ID"`
}

// UpdateStatusRequest is the body of POST /api/reports/status.
type UpdateStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// AddRecipientRequest is the body of POST /api/recipients.
type AddRecipientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Viewport is the bounding rectangle enclosing a set of report locations.
type Viewport struct {
	MinLatitude  float64 `json:"minLatitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
	MinLongitude float64 `json:"minLongitude"`
	MaxLongitude float64 `json:"maxLongitude"`
}

// ReportListResponse is the body of GET /api/reports.
type ReportListResponse struct {
	Reports  []Report  `json:"reports"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"road-report-service/config"
	"road-report-service/database"
	"road-report-service/email"
	"road-report-service/line"
	"road-report-service/models"
	"road-report-service/services"
	"road-report-service/storage"
	"road-report-service/validation"
)

func newLineStub() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"client_id": "login-channel"})
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"userId": "U1234567890"})
	})
	mux.HandleFunc("/push", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})
	return httptest.NewServer(mux)
}

func newTestRouter(t *testing.T, lineURL string) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	photos, err := storage.NewPhotoStore(t.TempDir(), "http://localhost:8080/photos")
	if err != nil {
		t.Fatalf("photo store: %v", err)
	}

	cfg := &config.Config{
		LiffID:                 "liff-test-id",
		LineChannelAccessToken: "channel-token",
		LineLoginChannelID:     "login-channel",
		LineVerifyURL:          lineURL + "/verify",
		LineProfileURL:         lineURL + "/profile",
		LinePushURL:            lineURL + "/push",
		AdminBaseURL:           "http://localhost:8080",
	}

	svc := services.NewReportService(cfg, database.NewWithDB(db), photos,
		line.NewClient(cfg), email.NewSender(cfg), nil)

	router := gin.New()
	h := NewHandlers(cfg, svc)
	h.SetupRoutes(router, func(c *gin.Context) { c.Next() })
	return router, mock
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitReportMethodNotAllowed(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
	var body models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != "error" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestSubmitReportSuccess(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, mock := newTestRouter(t, stub.URL)

	mock.ExpectExec("INSERT INTO reports").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM mail_recipients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}))

	w := postJSON(router, "/report", map[string]interface{}{
		"latitude":    "36.871",
		"longitude":   140.016,
		"type":        "陥没",
		"accessToken": "valid-token",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.SubmitReportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" || resp.ID == "" || !resp.LineNotified || resp.ImageUploaded {
		t.Errorf("unexpected response: %+v", resp)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", resp.Timestamp, err)
	}
}

func TestSubmitReportValidationFailure(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := postJSON(router, "/report", map[string]interface{}{
		"latitude":    36.871,
		"longitude":   140.016,
		"type":        "",
		"accessToken": "valid-token",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != "error" || !strings.Contains(body.Message, validation.MsgTypeMissing) {
		t.Errorf("unexpected error body: %s", w.Body.String())
	}
}

func TestSubmitReportUnparseableBody(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/report", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestGetConfig(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body models.ConfigResponse
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.LiffID != "liff-test-id" {
		t.Errorf("unexpected config body: %s", w.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestListReportsWithViewport(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, mock := newTestRouter(t, stub.URL)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "created_at", "status", "latitude", "longitude",
		"type", "details", "map_link", "photo_url", "storage_path", "reporter_id",
	}).
		AddRow("id-1", now, models.StatusUnprocessed, 36.8, 140.0, "陥没", "", "m1", "", "", "U1").
		AddRow("id-2", now, models.StatusUnprocessed, 36.9, 140.1, "段差", "", "m2", "", "", "U2")
	mock.ExpectQuery("SELECT (.+) FROM reports").WillReturnRows(rows)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.ReportListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(resp.Reports))
	}
	if resp.Viewport == nil {
		t.Fatal("expected a viewport")
	}
	if resp.Viewport.MinLatitude > 36.81 || resp.Viewport.MaxLatitude < 36.89 {
		t.Errorf("viewport latitudes do not enclose reports: %+v", resp.Viewport)
	}
	if resp.Viewport.MinLongitude > 140.01 || resp.Viewport.MaxLongitude < 140.09 {
		t.Errorf("viewport longitudes do not enclose reports: %+v", resp.Viewport)
	}
}

func TestListReportsRejectsBadLimit(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports?limit=0", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdateReportStatusRejectsUnknownValue(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := postJSON(router, "/api/reports/status", models.UpdateStatusRequest{
		ID:     "id-1",
		Status: "保留",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateReportStatusSuccess(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, mock := newTestRouter(t, stub.URL)

	mock.ExpectExec("UPDATE reports SET status").
		WithArgs(models.StatusProcessed, "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(router, "/api/reports/status", models.UpdateStatusRequest{
		ID:     "id-1",
		Status: models.StatusProcessed,
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAddRecipientRejectsBadEmail(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, _ := newTestRouter(t, stub.URL)

	w := postJSON(router, "/api/recipients", models.AddRecipientRequest{
		Name:  "田中",
		Email: "no-at-sign",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAddRecipientSuccess(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, mock := newTestRouter(t, stub.URL)

	mock.ExpectExec("INSERT INTO mail_recipients").
		WithArgs(sqlmock.AnyArg(), "田中", "tanaka@example.jp", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(router, "/api/recipients", models.AddRecipientRequest{
		Name:  "田中",
		Email: "tanaka@example.jp",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var recipient models.Recipient
	json.Unmarshal(w.Body.Bytes(), &recipient)
	if recipient.ID == "" || recipient.Email != "tanaka@example.jp" {
		t.Errorf("unexpected recipient: %+v", recipient)
	}
}

func TestDeleteRecipientMissing(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, mock := newTestRouter(t, stub.URL)

	mock.ExpectExec("DELETE FROM mail_recipients").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/recipients/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDeleteRecipientDatabaseFailure(t *testing.T) {
	stub := newLineStub()
	defer stub.Close()
	router, mock := newTestRouter(t, stub.URL)

	mock.ExpectExec("DELETE FROM mail_recipients").
		WithArgs("r-1").
		WillReturnError(sql.ErrConnDone)

	// A broken database is not a missing recipient.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/recipients/r-1", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

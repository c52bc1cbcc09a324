// Package client is the submitting side of the pipeline: it captures a
// report, validates and normalizes it locally, and delivers it to the
// service with bounded retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apex/log"

	"road-report-service/image"
	"road-report-service/models"
	"road-report-service/validation"
)

// MsgPhotoEncodeFailed is surfaced when a captured photo cannot be
// re-encoded for upload.
const MsgPhotoEncodeFailed = "画像の再エンコードに失敗しました。"

// Options controls submission delivery.
type Options struct {
	BaseURL        string
	MaxAttempts    int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// DefaultOptions returns the delivery defaults: three attempts, a fixed
// one-second pause between them, thirty seconds per attempt.
func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:        baseURL,
		MaxAttempts:    3,
		RetryDelay:     time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// ValidationError is a local rejection raised before any network traffic.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ServerError is any HTTP response other than 200. Receiving a response
// means the server made a decision, so a ServerError is never retried.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Submission is one captured report before delivery.
type Submission struct {
	Latitude    float64
	Longitude   float64
	HasLocation bool
	Type        string
	Details     string
	Photo       []byte // raw captured bytes, normalized before upload
	AccessToken string
}

// Submitter delivers submissions to the report service.
type Submitter struct {
	opts       Options
	httpClient *http.Client
}

// NewSubmitter creates a submitter with the given delivery options.
func NewSubmitter(opts Options) *Submitter {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Submitter{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
	}
}

// Prepare validates the captured submission and normalizes its photo into
// the upload payload. All failures here are local; nothing has been sent.
func (s *Submitter) Prepare(sub *Submission) (*models.SubmitReportRequest, error) {
	req := &models.SubmitReportRequest{
		Type:        sub.Type,
		Details:     sub.Details,
		AccessToken: sub.AccessToken,
	}
	if sub.HasLocation {
		req.Latitude = models.Coordinate{Value: sub.Latitude, Valid: true}
		req.Longitude = models.Coordinate{Value: sub.Longitude, Valid: true}
	}

	if len(sub.Photo) > 0 {
		payload, err := image.Normalize(sub.Photo, image.DefaultOptions())
		if err != nil {
			log.Warnf("Photo normalization failed: %v", err)
			return nil, &ValidationError{Reason: MsgPhotoEncodeFailed}
		}
		dataURL := image.EncodeDataURL(payload)
		if len(dataURL) > validation.MaxPhotoDataBytes {
			return nil, &ValidationError{Reason: validation.MsgPhotoTooLarge}
		}
		req.PhotoData = dataURL
	}

	if result := validation.ValidateSubmission(req); !result.Valid {
		return nil, &ValidationError{Reason: result.Message}
	}
	return req, nil
}

// Submit prepares and delivers one submission. Transport errors and
// timeouts are retried up to MaxAttempts with a fixed pause; any received
// HTTP response ends the retry loop immediately, success or not.
func (s *Submitter) Submit(ctx context.Context, sub *Submission) (*models.SubmitReportResponse, error) {
	req, err := s.Prepare(sub)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		resp, err := s.deliver(ctx, body)
		if err == nil {
			return resp, nil
		}

		var serr *ServerError
		if errors.As(err, &serr) {
			// The server received and judged the request. Retrying
			// a rejected submission would only duplicate accepted
			// ones, so give up here.
			return nil, serr
		}

		lastErr = err
		log.Warnf("Submission attempt %d/%d failed: %v", attempt, s.opts.MaxAttempts, err)
		if attempt == s.opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(s.opts.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("submission failed after %d attempts: %w", s.opts.MaxAttempts, lastErr)
}

// deliver performs one POST /report attempt under the per-attempt timeout.
func (s *Submitter) deliver(parent context.Context, body []byte) (*models.SubmitReportResponse, error) {
	ctx, cancel := context.WithTimeout(parent, s.opts.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL+"/report", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		var errBody models.ErrorResponse
		raw, _ := io.ReadAll(httpResp.Body)
		message := string(raw)
		if json.Unmarshal(raw, &errBody) == nil && errBody.Message != "" {
			message = errBody.Message
		}
		return nil, &ServerError{StatusCode: httpResp.StatusCode, Message: message}
	}

	var resp models.SubmitReportResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &ServerError{StatusCode: httpResp.StatusCode, Message: "unparseable response body"}
	}
	return &resp, nil
}

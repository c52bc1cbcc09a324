// Package validation checks report submissions. The same rules run in the
// submitting client before the request is sent and again in the server
// handler, which never trusts the client's pre-check.
package validation

import (
	"strings"
	"unicode/utf8"

	"road-report-service/models"
)

const (
	// MaxDetailsLength is counted in Unicode code points, not bytes.
	MaxDetailsLength = 100

	// MaxTypeLength is counted in Unicode code points, not bytes.
	MaxTypeLength = 50

	// MaxPhotoDataBytes bounds the base64 data URL, roughly a 5MB source file.
	MaxPhotoDataBytes = 7 * 1024 * 1024

	photoDataPrefix = "data:image/"
)

// Validation messages, surfaced to the reporting user as-is.
const (
	MsgLocationMissing  = "場所が指定されていません。地図を動かして位置を合わせてください。"
	MsgLatitudeInvalid  = "緯度の値が正しくありません。"
	MsgLongitudeInvalid = "経度の値が正しくありません。"
	MsgTypeMissing      = "異常の種類が入力されていません。"
	MsgTypeTooLong      = "異常の種類は50文字以内で入力してください。"
	MsgDetailsRequired  = "「その他」を選択した場合は、詳細を必ず入力してください。"
	MsgDetailsTooLong   = "詳細は100文字以内で入力してください。"
	MsgPhotoTooLarge    = "画像サイズが大きすぎます。"
	MsgPhotoBadFormat   = "無効な画像データ形式です。"
)

// Result reports whether a submission passed validation and, if not, why.
type Result struct {
	Valid   bool
	Message string
}

func invalid(msg string) Result {
	return Result{Valid: false, Message: msg}
}

// ValidateSubmission applies all submission rules in priority order and
// returns the first violation.
func ValidateSubmission(req *models.SubmitReportRequest) Result {
	if !req.Latitude.Valid || !req.Longitude.Valid {
		return invalid(MsgLocationMissing)
	}
	if req.Latitude.Value < -90 || req.Latitude.Value > 90 {
		return invalid(MsgLatitudeInvalid)
	}
	if req.Longitude.Value < -180 || req.Longitude.Value > 180 {
		return invalid(MsgLongitudeInvalid)
	}

	if strings.TrimSpace(req.Type) == "" {
		return invalid(MsgTypeMissing)
	}
	if utf8.RuneCountInString(req.Type) > MaxTypeLength {
		return invalid(MsgTypeTooLong)
	}

	if req.Type == models.CategoryOther && strings.TrimSpace(req.Details) == "" {
		return invalid(MsgDetailsRequired)
	}

	if utf8.RuneCountInString(req.Details) > MaxDetailsLength {
		return invalid(MsgDetailsTooLong)
	}

	if req.PhotoData != "" {
		if len(req.PhotoData) > MaxPhotoDataBytes {
			return invalid(MsgPhotoTooLarge)
		}
		if !strings.HasPrefix(req.PhotoData, photoDataPrefix) {
			return invalid(MsgPhotoBadFormat)
		}
	}

	return Result{Valid: true}
}

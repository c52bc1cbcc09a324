package line

import (
	"fmt"
	"time"

	"road-report-service/models"
)

// Message is one entry of a Messaging API push batch. The flex message
// format is deeply nested free-form JSON, so messages are built as maps.
type Message map[string]interface{}

// BuildReportMessages assembles the ordered notification batch sent to the
// reporting user: flex summary, location, image (when a photo exists) and a
// plain-text summary.
func BuildReportMessages(report *models.Report) []Message {
	messages := []Message{
		buildFlexMessage(report),
		{
			"type":      "location",
			"title":     "通報場所",
			"address":   fmt.Sprintf("緯度: %v, 経度: %v", report.Latitude, report.Longitude),
			"latitude":  report.Latitude,
			"longitude": report.Longitude,
		},
	}

	if report.PhotoURL != "" {
		messages = append(messages, Message{
			"type":               "image",
			"originalContentUrl": report.PhotoURL,
			"previewImageUrl":    report.PhotoURL,
		})
	}

	messages = append(messages, Message{
		"type": "text",
		"text": buildTextSummary(report),
	})

	return messages
}

func buildFlexMessage(report *models.Report) Message {
	details := report.Details
	if details == "" {
		details = "記載なし"
	}

	field := func(label, value, valueColor string) Message {
		valueText := Message{"type": "text", "text": value, "weight": "bold", "size": "md", "margin": "xs", "wrap": true}
		if valueColor != "" {
			valueText["color"] = valueColor
		}
		return Message{
			"type":   "box",
			"layout": "vertical",
			"margin": "md",
			"contents": []Message{
				{"type": "text", "text": label, "color": "#666666", "size": "sm"},
				valueText,
			},
		}
	}

	return Message{
		"type":    "flex",
		"altText": "道路異状通報を受け付けました",
		"contents": Message{
			"type": "bubble",
			"header": Message{
				"type":   "box",
				"layout": "vertical",
				"contents": []Message{
					{"type": "text", "text": "🚧 道路異状通報", "weight": "bold", "color": "#ffffff", "size": "lg"},
					{"type": "text", "text": "受付完了", "color": "#ffffff", "size": "sm"},
				},
				"backgroundColor": "#3498db",
				"paddingAll":      "lg",
			},
			"body": Message{
				"type":   "box",
				"layout": "vertical",
				"contents": []Message{
					field("受付日時", report.CreatedAt.Format("2006/01/02 15:04:05"), ""),
					field("通報種別", report.Type, "#e74c3c"),
					field("詳細情報", details, ""),
				},
			},
			"footer": Message{
				"type":   "box",
				"layout": "vertical",
				"margin": "md",
				"contents": []Message{
					{
						"type":  "button",
						"style": "primary",
						"color": "#27ae60",
						"action": Message{
							"type":  "uri",
							"label": "🗺️ 地図で確認",
							"uri":   fmt.Sprintf("https://www.google.com/maps?q=%v,%v", report.Latitude, report.Longitude),
						},
					},
				},
			},
		},
	}
}

func buildTextSummary(report *models.Report) string {
	details := report.Details
	if details == "" {
		details = "記載なし"
	}

	text := "📋 通報詳細\n\n"
	text += fmt.Sprintf("🔸 種別: %s\n", report.Type)
	text += fmt.Sprintf("🔸 詳細: %s\n", details)
	text += fmt.Sprintf("🔸 受付日時: %s\n\n", formatTimestamp(report.CreatedAt))
	if report.MapLink != "" {
		text += fmt.Sprintf("📍 場所の確認:\n%s\n\n", report.MapLink)
	}
	if report.PhotoURL != "" {
		text += fmt.Sprintf("📷 写真の確認:\n%s\n\n", report.PhotoURL)
	}
	text += "📍 通報を受け付けました。\nご協力ありがとうございました。"
	return text
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006/01/02 15:04")
}

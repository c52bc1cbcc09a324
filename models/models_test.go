package models

import (
	"encoding/json"
	"testing"
)

func TestCoordinateUnmarshal(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantValid bool
		wantValue float64
	}{
		{"number", `{"latitude": 36.871}`, true, 36.871},
		{"numeric string", `{"latitude": "36.871"}`, true, 36.871},
		{"padded string", `{"latitude": " 36.871 "}`, true, 36.871},
		{"negative", `{"latitude": -89.5}`, true, -89.5},
		{"null", `{"latitude": null}`, false, 0},
		{"empty string", `{"latitude": ""}`, false, 0},
		{"absent", `{}`, false, 0},
		{"non-numeric string", `{"latitude": "north"}`, false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req SubmitReportRequest
			if err := json.Unmarshal([]byte(tc.body), &req); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if req.Latitude.Valid != tc.wantValid {
				t.Errorf("Valid = %t, want %t", req.Latitude.Valid, tc.wantValid)
			}
			if tc.wantValid && req.Latitude.Value != tc.wantValue {
				t.Errorf("Value = %v, want %v", req.Latitude.Value, tc.wantValue)
			}
		})
	}
}

func TestCoordinateMarshal(t *testing.T) {
	raw, err := json.Marshal(Coordinate{Value: 140.016, Valid: true})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(raw) != "140.016" {
		t.Errorf("marshal = %s", raw)
	}

	raw, _ = json.Marshal(Coordinate{})
	if string(raw) != "null" {
		t.Errorf("invalid coordinate marshal = %s", raw)
	}
}

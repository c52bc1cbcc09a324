// Dev/test submitter for dev/test/troubleshooting.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/apex/log"

	"road-report-service/client"
)

var (
	serverURL   = flag.String("url", "http://127.0.0.1:8080", "report service base URL")
	accessToken = flag.String("token", "", "LIFF access token to submit with")
	latitude    = flag.Float64("lat", 36.8714, "report latitude")
	longitude   = flag.Float64("lng", 140.0168, "report longitude")
	defectType  = flag.String("type", "陥没", "defect category")
	details     = flag.String("details", "", "defect details")
	photoPath   = flag.String("photo", "", "path of a photo to attach")
)

func main() {
	flag.Parse()

	sub := &client.Submission{
		Latitude:    *latitude,
		Longitude:   *longitude,
		HasLocation: true,
		Type:        *defectType,
		Details:     *details,
		AccessToken: *accessToken,
	}

	if *photoPath != "" {
		data, err := os.ReadFile(*photoPath)
		if err != nil {
			log.Fatalf("Failed to read photo %s: %v", *photoPath, err)
		}
		sub.Photo = data
	}

	s := client.NewSubmitter(client.DefaultOptions(*serverURL))
	resp, err := s.Submit(context.Background(), sub)
	if err != nil {
		log.Fatalf("Submission failed: %v", err)
	}

	log.Infof("Done: id=%s lineNotified=%t imageUploaded=%t", resp.ID, resp.LineNotified, resp.ImageUploaded)
}

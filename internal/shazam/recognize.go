package shazam

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/AdrienPensart/critical/internal/errs"
)

// DefaultEndpoint is the discovery endpoint answering signature lookups.
const DefaultEndpoint = "https://amp.shazam.com/discovery/v5/en/US/android/-/tag"

const recognizeTimeout = 20 * time.Second

// Song is a recognition result.
type Song struct {
	Path   string
	Artist string
	Album  string
	Title  string
}

type tagRequest struct {
	Signature tagSignature `json:"signature"`
	Timestamp int64        `json:"timestamp"`
	TimeZone  string       `json:"timezone"`
}

type tagSignature struct {
	URI       string `json:"uri"`
	SampleMs  int64  `json:"samplems"`
	Timestamp int64  `json:"timestamp"`
}

type tagResponse struct {
	Track struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
		Sections []struct {
			Type     string `json:"type"`
			Metadata []struct {
				Title string `json:"title"`
				Text  string `json:"text"`
			} `json:"metadata"`
		} `json:"sections"`
	} `json:"track"`
}

// Recognize submits the signature and maps the response onto a Song. A
// response without a track title or artist is NoMatch. An empty endpoint
// uses DefaultEndpoint.
func Recognize(ctx context.Context, endpoint, path string, sig *Signature) (*Song, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	now := time.Now().UnixMilli()
	body := tagRequest{
		Signature: tagSignature{
			URI:       sig.Encode(),
			SampleMs:  int64(sig.Seconds() * 1000),
			Timestamp: now,
		},
		Timestamp: now,
		TimeZone:  "UTC",
	}

	var parsed tagResponse
	client := resty.New().SetTimeout(recognizeTimeout)
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParams(map[string]string{
			"sync":      "true",
			"sampling":  "true",
			"timestamp": fmt.Sprintf("%d", now),
		}).
		SetBody(&body).
		SetResult(&parsed).
		Post(fmt.Sprintf("%s/%s/%s", endpoint, uuid.New(), uuid.New()))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("recognition service: %s", resp.Status())
	}
	if parsed.Track.Title == "" || parsed.Track.Subtitle == "" {
		return nil, &errs.NoMatch{Path: path}
	}

	song := &Song{
		Path:   path,
		Artist: parsed.Track.Subtitle,
		Title:  parsed.Track.Title,
	}
	for _, section := range parsed.Track.Sections {
		if section.Type != "SONG" {
			continue
		}
		for _, metadata := range section.Metadata {
			if metadata.Title == "Album" {
				song.Album = metadata.Text
			}
		}
		break
	}
	return song, nil
}

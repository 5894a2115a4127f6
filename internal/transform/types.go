package transform

import (
	"fmt"
	"strings"
)

// Header is one HTTP header as observed on a request or response.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RequestData is what the tracker remembers about a request so the document
// can be fetched again later.
type RequestData struct {
	Method  string   `json:"method"`
	URL     string   `json:"url"`
	Headers []Header `json:"requestHeaders"`
}

// PageRange limits the transform to a run of pages.
type PageRange struct {
	StartingIndex int `json:"starting_index"`
	Count         int `json:"count"`
}

// Color is an RGB background colour.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Quality is the render quality requested from the service.
type Quality string

const (
	QualityExtreme  Quality = "Extreme"
	QualityHigh     Quality = "High"
	QualityNormal   Quality = "Normal"
	QualityLow      Quality = "Low"
	QualityExtraLow Quality = "ExtraLow"
)

// ParseQuality accepts any capitalisation of a quality name.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "extreme":
		return QualityExtreme, nil
	case "high":
		return QualityHigh, nil
	case "normal":
		return QualityNormal, nil
	case "low":
		return QualityLow, nil
	case "extralow":
		return QualityExtraLow, nil
	default:
		return "", fmt.Errorf("invalid quality %q", s)
	}
}

// Meta is sent JSON-encoded in the meta query parameter of a transform request.
type Meta struct {
	ClientUID       string     `json:"clientUid"`
	Source          string     `json:"source"`
	PageRange       *PageRange `json:"pageRange,omitempty"`
	Quality         Quality    `json:"quality"`
	BackgroundColor Color      `json:"backgroundColor"`
}

// Params are the caller-chosen transform settings.
type Params struct {
	Quality         Quality
	BackgroundColor Color
	PageRange       *PageRange
}

func headerValue(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			if h.Value == "" {
				return "", false
			}
			return h.Value, true
		}
	}
	return "", false
}

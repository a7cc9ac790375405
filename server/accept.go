package server

import (
	"strconv"
	"strings"
)

const (
	mediaTypeJSON        = "application/json"
	mediaTypeEventStream = "text/event-stream"
)

// PrefersEventStream reports whether an Accept header ranks text/event-stream above application/json.
// Quality defaults to 1 (also when unparsable) and is clamped to [0,1]; ties go to the type listed first.
// Wildcards do not count as either type.
func PrefersEventStream(accept string) bool {
	sse, json := -1.0, -1.0
	ssePosition, jsonPosition := -1, -1
	for i, part := range strings.Split(accept, ",") {
		mediaType, quality := parseMediaRange(part)
		switch mediaType {
		case mediaTypeEventStream:
			if ssePosition == -1 {
				sse, ssePosition = quality, i
			}
		case mediaTypeJSON:
			if jsonPosition == -1 {
				json, jsonPosition = quality, i
			}
		}
	}
	switch {
	case ssePosition == -1:
		return false
	case jsonPosition == -1:
		return true
	case sse > json:
		return true
	case sse == json:
		return ssePosition < jsonPosition
	}
	return false
}

func parseMediaRange(part string) (string, float64) {
	segments := strings.Split(part, ";")
	mediaType := strings.ToLower(strings.TrimSpace(segments[0]))
	quality := 1.0
	for _, parameter := range segments[1:] {
		key, value, ok := strings.Cut(parameter, "=")
		if !ok || strings.ToLower(strings.TrimSpace(key)) != "q" {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			parsed = 1.0
		}
		quality = clamp(parsed)
	}
	return mediaType, quality
}

func clamp(quality float64) float64 {
	switch {
	case quality < 0:
		return 0
	case quality > 1:
		return 1
	}
	return quality
}

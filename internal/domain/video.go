package domain

import (
	"fmt"
	"strings"
	"time"
)

// AspectRatio enumerates the frame shapes accepted by the video model.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// Resolution enumerates the output resolutions accepted by the video model.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// GenerationConfig is the immutable input of a single workflow run.
type GenerationConfig struct {
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspect_ratio"`
	Resolution  Resolution  `json:"resolution"`
}

// Validate reports ErrInvalidConfig when the prompt is blank or an enum is unknown.
func (c GenerationConfig) Validate() error {
	if strings.TrimSpace(c.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidConfig)
	}
	switch c.AspectRatio {
	case AspectLandscape, AspectPortrait:
	default:
		return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidConfig, c.AspectRatio)
	}
	switch c.Resolution {
	case Resolution720p, Resolution1080p:
	default:
		return fmt.Errorf("%w: unsupported resolution %q", ErrInvalidConfig, c.Resolution)
	}
	return nil
}

// GeneratedVideo is the result of one successful workflow run. It is never
// mutated after creation.
type GeneratedVideo struct {
	ID             string           `json:"id"`
	MediaReference string           `json:"media_reference"`
	Prompt         string           `json:"prompt"`
	CreatedAt      time.Time        `json:"created_at"`
	Config         GenerationConfig `json:"config"`
	MIMEType       string           `json:"mime_type,omitempty"`
	Size           int64            `json:"size,omitempty"`
}

// Package types provides type definitions for structured data used throughout the content-studio system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ContentType identifies what kind of content a generation run produces
type ContentType string

// Supported content types
const (
	ContentVideo      ContentType = "VIDEO"
	ContentQuiz       ContentType = "QUIZ"
	ContentStorybook  ContentType = "STORYBOOK"
	ContentFlashcards ContentType = "FLASHCARDS"
	ContentPodcast    ContentType = "PODCAST"
)

// ContentTypes lists every supported content type in display order
var ContentTypes = []ContentType{
	ContentVideo,
	ContentQuiz,
	ContentStorybook,
	ContentFlashcards,
	ContentPodcast,
}

// ParseContentType parses a content type case-insensitively
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ContentTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown content type: %q", s)
}

// VoiceSettings controls narration for audio-bearing content
type VoiceSettings struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	VoiceID string  `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	Speed   float64 `json:"speed,omitempty" yaml:"speed,omitempty" validate:"omitempty,gte=0.5,lte=2"`
}

// GenerationRequest describes one generation ask. It is consumed once to start a run.
type GenerationRequest struct {
	Prompt         string        `json:"prompt" yaml:"prompt" validate:"required,max=4000"`
	ContentType    ContentType   `json:"content_type" yaml:"content_type" validate:"required,oneof=VIDEO QUIZ STORYBOOK FLASHCARDS PODCAST"`
	Language       string        `json:"language" yaml:"language" validate:"required,min=2,max=16"`
	Voice          VoiceSettings `json:"voice" yaml:"voice"`
	TargetAudience string        `json:"target_audience,omitempty" yaml:"target_audience,omitempty" validate:"max=200"`
	TargetDuration int           `json:"target_duration,omitempty" yaml:"target_duration,omitempty" validate:"gte=0,lte=3600"` // seconds
	Model          string        `json:"model,omitempty" yaml:"model,omitempty"`
}

// Validate validates the GenerationRequest using the validator.
func (r *GenerationRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Settings returns the request without its prompt. Runs keep this copy so
// that history entries describe how a run was configured.
func (r GenerationRequest) Settings() GenerationSettings {
	return GenerationSettings{
		ContentType:    r.ContentType,
		Language:       r.Language,
		Voice:          r.Voice,
		TargetAudience: r.TargetAudience,
		TargetDuration: r.TargetDuration,
		Model:          r.Model,
	}
}

// GenerationSettings is a GenerationRequest minus the prompt
type GenerationSettings struct {
	ContentType    ContentType   `json:"content_type"`
	Language       string        `json:"language"`
	Voice          VoiceSettings `json:"voice"`
	TargetAudience string        `json:"target_audience,omitempty"`
	TargetDuration int           `json:"target_duration,omitempty"`
	Model          string        `json:"model,omitempty"`
}

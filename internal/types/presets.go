package types

// ContentPreset holds display metadata and sample prompts for a content type
type ContentPreset struct {
	Label         string   `json:"label"`
	Icon          string   `json:"icon"`
	SamplePrompts []string `json:"sample_prompts"`
}

var contentPresets = map[ContentType]ContentPreset{
	ContentVideo: {
		Label: "Explainer video",
		Icon:  "video",
		SamplePrompts: []string{
			"Explain gravity to a 10 year old",
			"How does photosynthesis work?",
			"The water cycle in three minutes",
		},
	},
	ContentQuiz: {
		Label: "Quiz",
		Icon:  "help-circle",
		SamplePrompts: []string{
			"10 questions on the French Revolution",
			"Basic algebra: solving linear equations",
		},
	},
	ContentStorybook: {
		Label: "Storybook",
		Icon:  "book-open",
		SamplePrompts: []string{
			"A short story about a curious robot learning to share",
			"A fable that teaches the value of patience",
		},
	},
	ContentFlashcards: {
		Label: "Flashcards",
		Icon:  "layers",
		SamplePrompts: []string{
			"Periodic table: first 20 elements",
			"Common Spanish verbs in present tense",
		},
	},
	ContentPodcast: {
		Label: "Podcast",
		Icon:  "mic",
		SamplePrompts: []string{
			"A two-host conversation about black holes",
		},
	},
}

// Preset returns the preset for a content type
func Preset(ct ContentType) (ContentPreset, bool) {
	p, ok := contentPresets[ct]
	return p, ok
}

// Presets returns all presets keyed by content type
func Presets() map[ContentType]ContentPreset {
	out := make(map[ContentType]ContentPreset, len(contentPresets))
	for k, v := range contentPresets {
		out[k] = v
	}
	return out
}

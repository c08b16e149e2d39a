package types

// FileRef is a file reference as reported by the generation service
type FileRef struct {
	FileID string `json:"file_id,omitempty"`
	URL    string `json:"url"`
}

// StatusSnapshot is the upstream fetch-status-by-id response
type StatusSnapshot struct {
	VideoID    string             `json:"video_id"`
	Stage      string             `json:"stage"`
	Status     string             `json:"status"`
	Percentage float64            `json:"percentage"`
	Message    string             `json:"message,omitempty"`
	Files      map[string]FileRef `json:"files,omitempty"`
}

// PlayerURLs is the upstream fetch-URLs-by-id response
type PlayerURLs struct {
	TimelineURL string `json:"timeline_url"`
	AudioURL    string `json:"audio_url"`
	VideoURL    string `json:"video_url,omitempty"`
}

package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/content-studio/internal/types"
)

// Prefix marks the lines of the stream that carry an event payload
const Prefix = "data:"

// maxLineSize bounds a single stream line. Completed events carry every file URL.
const maxLineSize = 1 << 20

// literalReplacer rewrites the service's Python-literal payloads into JSON.
// It is purely textual, so string values containing a quote or the words
// None/True/False are corrupted. Matches what the service emits today.
var literalReplacer = strings.NewReplacer(
	"'", `"`,
	"None", "null",
	"True", "true",
	"False", "false",
)

// Normalize converts a payload in the service's literal notation into JSON.
// This is the only place that knows about that notation.
func Normalize(payload string) string {
	return literalReplacer.Replace(payload)
}

type wirePayload struct {
	Type       string                     `json:"type"`
	Stage      string                     `json:"stage"`
	Message    string                     `json:"message"`
	Error      string                     `json:"error"`
	Percentage *float64                   `json:"percentage"`
	VideoID    string                     `json:"video_id"`
	Files      map[string]json.RawMessage `json:"files"`
}

// Decode converts one line of the stream into an event.
// Lines without the data prefix yield (nil, nil). Undecodable data lines
// yield a *MalformedError; callers are expected to log it and move on.
func Decode(line string) (*Event, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, Prefix) {
		return nil, nil
	}
	raw := strings.TrimSpace(strings.TrimPrefix(line, Prefix))
	if raw == "" {
		return nil, &MalformedError{Line: line, Cause: fmt.Errorf("empty payload")}
	}

	var p wirePayload
	if err := json.Unmarshal([]byte(Normalize(raw)), &p); err != nil {
		return nil, &MalformedError{Line: line, Cause: err}
	}

	switch Kind(p.Type) {
	case KindProgress:
		files, err := decodeFileRefs(p.Files)
		if err != nil {
			return nil, &MalformedError{Line: line, Cause: err}
		}
		prog := &Progress{
			RunID:   p.VideoID,
			Stage:   types.Stage(strings.ToUpper(p.Stage)),
			Message: p.Message,
			Files:   files,
		}
		if p.Percentage != nil {
			prog.Percentage = clampPercentage(*p.Percentage)
		}
		return &Event{Kind: KindProgress, Progress: prog}, nil

	case KindCompleted:
		files, err := decodeFileRefs(p.Files)
		if err != nil {
			return nil, &MalformedError{Line: line, Cause: err}
		}
		urls := make(map[types.ArtifactKind]string, len(files))
		for kind, ref := range files {
			urls[kind] = ref.URL
		}
		return &Event{Kind: KindCompleted, Completed: &Completed{
			RunID:      p.VideoID,
			Percentage: 100,
			Files:      urls,
		}}, nil

	case KindError:
		msg := p.Message
		if msg == "" {
			msg = p.Error
		}
		if msg == "" {
			msg = "generation failed"
		}
		return &Event{Kind: KindError, Failure: &Failure{
			RunID:   p.VideoID,
			Message: msg,
			Stage:   types.Stage(strings.ToUpper(p.Stage)),
		}}, nil

	default:
		return nil, &MalformedError{Line: line, Cause: fmt.Errorf("unknown event type %q", p.Type)}
	}
}

// decodeFileRefs accepts both {"kind": {"file_id": .., "url": ..}} and
// {"kind": "url"} shapes. Entries without a URL are dropped.
func decodeFileRefs(raw map[string]json.RawMessage) (map[types.ArtifactKind]types.FileRef, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[types.ArtifactKind]types.FileRef, len(raw))
	for key, value := range raw {
		var ref types.FileRef
		var url string
		switch {
		case string(value) == "null":
			continue
		case json.Unmarshal(value, &url) == nil:
			ref.URL = url
		default:
			if err := json.Unmarshal(value, &ref); err != nil {
				return nil, fmt.Errorf("file %q: %w", key, err)
			}
		}
		if ref.URL == "" {
			continue
		}
		out[types.ParseArtifactKind(key)] = ref
	}
	return out, nil
}

func clampPercentage(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// NewLineScanner returns a scanner sized for stream lines
func NewLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

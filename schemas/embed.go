// Package schemas embeds the JSON Schemas for files the console reads and writes.
package schemas

import "embed"

// Schema file names
const (
	GenerationRequest = "generation_request.schema.json"
	History           = "history.schema.json"
)

//go:embed *.schema.json
var FS embed.FS

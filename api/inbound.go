package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FileInfo is one entry of the server's authoritative file manifest
// for a problem. Etag and LastModified together form the fingerprint
// used for change detection.
type FileInfo struct {
	Name         string `json:"name"`
	Etag         string `json:"etag"`
	LastModified string `json:"last_modified"`
}

// Fingerprint returns the concatenated version string persisted in the
// local manifest sidecar.
func (f FileInfo) Fingerprint() string {
	return f.Etag + f.LastModified
}

// Task is a judge task announcement received over the control channel
type Task struct {
	RID         string     `json:"rid"`
	Priority    int64      `json:"priority"`
	Rejudge     bool       `json:"rejudge,omitempty"`
	HackRejudge bool       `json:"hack_rejudge,omitempty"`
	DomainID    string     `json:"domain_id"`
	ProblemID   string     `json:"pid"`
	Lang        string     `json:"lang"`
	Code        string     `json:"code"`
	Type        string     `json:"type,omitempty"`
	Data        []FileInfo `json:"data,omitempty"`
}

// Source returns the problem reference used as the cache and lock key
func (t *Task) Source() string {
	return t.DomainID + "/" + t.ProblemID
}

// LanguageConfig describes one entry of the server's language table
type LanguageConfig struct {
	CodeFile string `json:"code_file,omitempty"`
	Compile  string `json:"compile,omitempty"`
	Execute  string `json:"execute,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Frame is a decoded inbound message. A literal "ping" string sets
// Ping; otherwise the frame may carry a language table and/or a task.
type Frame struct {
	Ping     bool
	Language map[string]LanguageConfig
	Task     *Task
}

var pingLiteral = []byte(`"ping"`)

// DecodeFrame parses one inbound control-channel frame
func DecodeFrame(b []byte) (*Frame, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, pingLiteral) || bytes.Equal(b, []byte("ping")) {
		return &Frame{Ping: true}, nil
	}

	var raw struct {
		Language map[string]LanguageConfig `json:"language"`
		Task     *Task                     `json:"task"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode inbound frame: %w", err)
	}
	return &Frame{Language: raw.Language, Task: raw.Task}, nil
}

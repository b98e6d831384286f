// Package types holds records shared between the storage, auth, queue and
// handler packages.
package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Sample kinds used when archiving audio
const (
	SampleLogin  = "login"
	SampleEnroll = "enroll"
	SampleStream = "stream"
)

// User links a local account to its Azure identification profile.
type User struct {
	AzureID   string    `json:"azure_id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Attempt is one recorded login.
type Attempt struct {
	ID           int64     `json:"id"`
	ChallengeID  string    `json:"challenge_id"`
	Username     string    `json:"username,omitempty"`
	IdentifiedID string    `json:"identified_id,omitempty"`
	Confidence   string    `json:"confidence,omitempty"`
	Transcript   string    `json:"transcript"`
	WordsMatched int       `json:"words_matched"`
	Passed       bool      `json:"passed"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SampleMeta is written next to every archived sample.
type SampleMeta struct {
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	ChallengeID  string    `json:"challenge_id,omitempty"`
	Words        []string  `json:"words,omitempty"`
	Transcript   string    `json:"transcript,omitempty"`
	IdentifiedID string    `json:"identified_id,omitempty"`
	Confidence   string    `json:"confidence,omitempty"`
	Passed       bool      `json:"passed"`
	Duration     float64   `json:"duration_seconds"`
	CreatedAt    time.Time `json:"created_at"`
	LocalPath    string    `json:"local_path"`
	GDriveURL    string    `json:"gdrive_url,omitempty"`
}

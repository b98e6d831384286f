package azure

import (
	"strings"
	"time"
)

// MaxCandidates is the largest number of profiles one identification may name.
const MaxCandidates = 10

// NoProfileID is reported as identifiedProfileId when no candidate matched.
const NoProfileID = "00000000-0000-0000-0000-000000000000"

// Enrollment states of an identification profile.
const (
	EnrollmentEnrolling = "Enrolling"
	EnrollmentTraining  = "Training"
	EnrollmentEnrolled  = "Enrolled"
)

// Operation states.
const (
	OperationNotStarted = "notstarted"
	OperationRunning    = "running"
	OperationSucceeded  = "succeeded"
	OperationFailed     = "failed"
)

// Confidence is the identification confidence reported by Azure.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceNormal Confidence = "Normal"
	ConfidenceHigh   Confidence = "High"
)

// Rank orders confidence levels; unknown values rank below Low.
func (c Confidence) Rank() int {
	switch {
	case strings.EqualFold(string(c), string(ConfidenceLow)):
		return 1
	case strings.EqualFold(string(c), string(ConfidenceNormal)):
		return 2
	case strings.EqualFold(string(c), string(ConfidenceHigh)):
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether c is at least as confident as min.
func (c Confidence) AtLeast(min Confidence) bool {
	return c.Rank() > 0 && c.Rank() >= min.Rank()
}

// Profile is an identification profile.
type Profile struct {
	ID                            string    `json:"identificationProfileId"`
	Locale                        string    `json:"locale"`
	EnrollmentSpeechTime          float64   `json:"enrollmentSpeechTime"`
	RemainingEnrollmentSpeechTime float64   `json:"remainingEnrollmentSpeechTime"`
	CreatedDateTime               time.Time `json:"createdDateTime"`
	LastActionDateTime            time.Time `json:"lastActionDateTime"`
	EnrollmentStatus              string    `json:"enrollmentStatus"`
}

// Enrolled reports whether the profile can take part in identification.
func (p Profile) Enrolled() bool {
	return p.EnrollmentStatus == EnrollmentEnrolled
}

// ProcessingResult is the outcome of a succeeded enrollment or identification.
// Enrollment fields and identification fields are never both set.
type ProcessingResult struct {
	EnrollmentStatus              string     `json:"enrollmentStatus,omitempty"`
	RemainingEnrollmentSpeechTime float64    `json:"remainingEnrollmentSpeechTime,omitempty"`
	SpeechTime                    float64    `json:"speechTime,omitempty"`
	EnrollmentSpeechTime          float64    `json:"enrollmentSpeechTime,omitempty"`
	IdentifiedProfileID           string     `json:"identifiedProfileId,omitempty"`
	Confidence                    Confidence `json:"confidence,omitempty"`
}

// Identified reports whether an identification picked one of the candidates.
func (r ProcessingResult) Identified() bool {
	return r.IdentifiedProfileID != "" && r.IdentifiedProfileID != NoProfileID
}

// Operation is the state of a long-running enrollment or identification.
type Operation struct {
	ID                 string            `json:"-"`
	Status             string            `json:"status"`
	CreatedDateTime    time.Time         `json:"createdDateTime"`
	LastActionDateTime time.Time         `json:"lastActionDateTime"`
	Message            string            `json:"message,omitempty"`
	ProcessingResult   *ProcessingResult `json:"processingResult,omitempty"`
}

// Done reports whether the operation reached a final state.
func (o Operation) Done() bool {
	return o.Status == OperationSucceeded || o.Status == OperationFailed
}

// Recognition status values returned by speech-to-text.
const (
	RecognitionSuccess = "Success"
	RecognitionNoMatch = "NoMatch"
)

// NBest is one alternative of a detailed recognition.
type NBest struct {
	Confidence float64 `json:"Confidence"`
	Lexical    string  `json:"Lexical"`
	ITN        string  `json:"ITN"`
	MaskedITN  string  `json:"MaskedITN"`
	Display    string  `json:"Display"`
}

// Recognition is a speech-to-text result in simple or detailed format.
type Recognition struct {
	RecognitionStatus string  `json:"RecognitionStatus"`
	DisplayText       string  `json:"DisplayText,omitempty"`
	Offset            int64   `json:"Offset"`
	Duration          int64   `json:"Duration"`
	NBest             []NBest `json:"NBest,omitempty"`
}

// Text returns the recognized text: DisplayText for the simple format, the
// most confident alternative for the detailed one.
func (r *Recognition) Text() string {
	if r.DisplayText != "" {
		return r.DisplayText
	}
	best := -1
	for i, alt := range r.NBest {
		if best < 0 || alt.Confidence > r.NBest[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return r.NBest[best].Display
}

// Confidence returns the confidence of the best alternative, or 0 for the
// simple format.
func (r *Recognition) Confidence() float64 {
	var c float64
	for _, alt := range r.NBest {
		if alt.Confidence > c {
			c = alt.Confidence
		}
	}
	return c
}

package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/codebuildervaibhav/hillmyna/internal/credentials"
)

const recognitionPath = "speech/recognition/conversation/cognitiveservices/v1"

// SpeechToTextClient calls the Speech-to-Text REST API for short audio.
type SpeechToTextClient struct {
	rest   *restClient
	locale string
}

// RecognizeOptions tunes a single recognition.
type RecognizeOptions struct {
	// Detailed requests the detailed format, which includes confidence scores.
	Detailed bool
	// Locale overrides the client locale.
	Locale string
}

// NewSpeechToTextClient creates a client for the speech resource.
func NewSpeechToTextClient(creds credentials.Credentials, locale string, opts ...Option) *SpeechToTextClient {
	if locale == "" {
		locale = "en-US"
	}
	return &SpeechToTextClient{
		rest:   newRESTClient(creds, opts...),
		locale: locale,
	}
}

// Recognize transcribes a 16 kHz mono PCM WAV stream.
// A recognition that completes without speech returns ErrNoSpeech along
// with the decoded result.
func (c *SpeechToTextClient) Recognize(ctx context.Context, wav io.Reader, opts RecognizeOptions) (*Recognition, error) {
	const op = "Recognition"

	locale := opts.Locale
	if locale == "" {
		locale = c.locale
	}
	format := "simple"
	if opts.Detailed {
		format = "detailed"
	}

	resp, err := c.rest.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   recognitionPath,
		query:  url.Values{"language": {locale}, "format": {format}},
		header: map[string]string{
			"Content-Type": "audio/wav; codecs=audio/pcm; samplerate=16000",
			"Accept":       "application/json",
		},
		body: wav,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(op, resp)
	}

	var rec Recognition
	if err := decode(op, resp, &rec); err != nil {
		return nil, err
	}
	if rec.RecognitionStatus != RecognitionSuccess {
		return &rec, fmt.Errorf("%w: %s", ErrNoSpeech, rec.RecognitionStatus)
	}
	return &rec, nil
}

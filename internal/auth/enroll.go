package auth

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// DefaultEnrollmentText is read aloud when no enrollment text file exists.
const DefaultEnrollmentText = `The hill myna is a member of the starling family, seen most commonly in ` +
	`hill regions of South Asia. It is one of the most famous talking birds, ` +
	`able to mimic the human voice with remarkable accuracy. Please read this ` +
	`paragraph at a natural pace, in a quiet room, holding the microphone at ` +
	`a steady distance, until the enrollment reports that it is complete.`

// LoadEnrollmentText reads the paragraph users read aloud while enrolling.
// A missing or empty file yields DefaultEnrollmentText.
func LoadEnrollmentText(path string, log *logrus.Entry) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warnf("Failed to read enrollment text %s", path)
		} else {
			log.Warnf("Enrollment text %s not found, using the default one", path)
		}
		return DefaultEnrollmentText
	}

	text := strings.Join(strings.Fields(string(data)), " ")
	if text == "" {
		log.Warnf("Enrollment text %s is empty, using the default one", path)
		return DefaultEnrollmentText
	}
	return text
}

// Enroll sends a WAV sample to the user's profile and waits for Azure to
// process it. The returned result tells how much speech is still needed.
func (s *Service) Enroll(ctx context.Context, username, wavPath string) (*azure.ProcessingResult, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	wav, format, err := s.readWAV(wavPath)
	if err != nil {
		return nil, err
	}
	shortAudio := s.isShort(format)

	opID, err := s.profiles.Enroll(ctx, u.AzureID, bytes.NewReader(wav), shortAudio)
	if err != nil {
		return nil, err
	}
	op, err := s.profiles.WaitOperation(ctx, opID)
	if err != nil {
		return nil, err
	}

	result := op.ProcessingResult
	if result == nil {
		result = &azure.ProcessingResult{}
	}
	s.log.WithField("user", username).Infof("Enrollment processed: %s, %.1fs of speech still needed",
		result.EnrollmentStatus, result.RemainingEnrollmentSpeechTime)

	if s.archive != nil {
		meta := &types.SampleMeta{
			Kind:     types.SampleEnroll,
			Name:     username,
			Passed:   true,
			Duration: format.Duration().Seconds(),
		}
		if _, err := s.archive.SaveSample(context.WithoutCancel(ctx), meta, wav); err != nil {
			s.log.WithError(err).Warn("Failed to archive enrollment sample")
		}
	}
	return result, nil
}

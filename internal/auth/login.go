package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/hillmyna/internal/audio"
	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/challenge"
	"github.com/codebuildervaibhav/hillmyna/internal/metrics"
	"github.com/codebuildervaibhav/hillmyna/internal/storage"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

var (
	// ErrAudioFormat is returned for WAV files Azure cannot process as is.
	ErrAudioFormat = errors.New("audio must be 16 kHz mono 16-bit PCM")
	// ErrAudioTooLong is returned for recordings over Settings.MaxDuration.
	ErrAudioTooLong = errors.New("recording is too long")
)

// Rejection reasons reported in LoginResult.Reason
const (
	ReasonChallengeInvalid = "challenge not found or already used"
	ReasonChallengeExpired = "challenge expired"
	ReasonUsernameMismatch = "challenge was issued for another user"
	ReasonUnknownUser      = "unknown user"
	ReasonUserDisabled     = "user is disabled"
	ReasonNoCandidates     = "no enabled users to identify against"
	ReasonWordsMismatch    = "spoken words do not match the challenge"
	ReasonNotIdentified    = "speaker not identified"
	ReasonWrongSpeaker     = "speaker does not match the claimed user"
	ReasonLowConfidence    = "identification confidence too low"
)

// LoginRequest is an answered challenge. Username is optional; without it
// the speaker is identified among every enabled and enrolled user.
type LoginRequest struct {
	ChallengeID string
	Username    string
	// AudioPath points to a 16 kHz mono 16-bit WAV file.
	AudioPath string
}

// LoginResult is the outcome of a login.
type LoginResult struct {
	Passed              bool                  `json:"passed"`
	ChallengeID         string                `json:"challenge_id"`
	Username            string                `json:"username,omitempty"`
	IdentifiedProfileID string                `json:"identified_profile_id,omitempty"`
	Confidence          azure.Confidence      `json:"confidence,omitempty"`
	Transcript          string                `json:"transcript"`
	Words               challenge.MatchResult `json:"words"`
	Reason              string                `json:"reason,omitempty"`
	SamplePath          string                `json:"sample_path,omitempty"`
}

// Identification is the speaker found in a sample.
type Identification struct {
	ProfileID  string           `json:"profile_id"`
	User       *types.User      `json:"user,omitempty"`
	Confidence azure.Confidence `json:"confidence"`
}

// IssueChallenge draws a new challenge, optionally bound to a username.
func (s *Service) IssueChallenge(ctx context.Context, username string) (*challenge.Challenge, error) {
	if username != "" && !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	c, err := s.issuer.Issue(ctx, username)
	if err != nil {
		return nil, err
	}
	s.metrics.ChallengeIssued()
	return c, nil
}

// Login checks an answered challenge: the transcript must contain the
// challenge words and the voice must belong to an enabled user (the claimed
// one, when given) with enough confidence. A rejected login is reported in
// the result; errors are reserved for failures to reach a decision.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	res := &LoginResult{ChallengeID: req.ChallengeID, Username: req.Username}
	log := s.log.WithField("challenge", req.ChallengeID)

	c, err := s.issuer.Redeem(ctx, req.ChallengeID)
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		return s.reject(ctx, res, nil, ReasonChallengeInvalid), nil
	case errors.Is(err, challenge.ErrExpired):
		return s.reject(ctx, res, nil, ReasonChallengeExpired), nil
	case err != nil:
		return s.fail(ctx, res, err)
	}
	res.Words = s.matcher.Match(c.Words, "")

	if c.Username != "" {
		if req.Username == "" {
			res.Username = c.Username
		} else if req.Username != c.Username {
			return s.reject(ctx, res, nil, ReasonUsernameMismatch), nil
		}
	}

	candidates, reason, err := s.candidates(ctx, res.Username)
	if err != nil {
		return s.fail(ctx, res, err)
	}
	if reason != "" {
		return s.reject(ctx, res, nil, reason), nil
	}

	wav, format, err := s.readWAV(req.AudioPath)
	if err != nil {
		return s.fail(ctx, res, err)
	}

	var ident *Identification
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := s.transcribe(gctx, wav)
		if err != nil {
			return err
		}
		res.Transcript = text
		res.Words = s.matcher.Match(c.Words, text)
		return nil
	})
	g.Go(func() error {
		var err error
		ident, err = s.identify(gctx, wav, format, candidates)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail(ctx, res, err)
	}

	log.Debugf("Heard %q, matched %d/%d words", res.Transcript, res.Words.Count, len(c.Words))

	if ident != nil {
		res.IdentifiedProfileID = ident.ProfileID
		res.Confidence = ident.Confidence
	}

	switch {
	case !res.Words.Passed:
		reason = ReasonWordsMismatch
	case ident == nil || ident.User == nil:
		reason = ReasonNotIdentified
	case res.Username != "" && ident.User.Username != res.Username:
		reason = ReasonWrongSpeaker
	case !ident.Confidence.AtLeast(s.settings.MinConfidence):
		reason = ReasonLowConfidence
	}
	if ident != nil && ident.User != nil && res.Username == "" {
		res.Username = ident.User.Username
	}

	if reason != "" {
		return s.reject(ctx, res, &sample{wav: wav, format: format, words: c.Words}, reason), nil
	}

	res.Passed = true
	s.record(ctx, res, &sample{wav: wav, format: format, words: c.Words})
	s.metrics.LoginAttempt(metrics.OutcomePassed)
	log.Infof("User %s logged in (confidence %s)", res.Username, res.Confidence)
	return res, nil
}

type sample struct {
	wav    []byte
	format audio.Format
	words  []string
}

func (s *Service) reject(ctx context.Context, res *LoginResult, smp *sample, reason string) *LoginResult {
	res.Passed = false
	res.Reason = reason
	s.record(ctx, res, smp)
	s.metrics.LoginAttempt(metrics.OutcomeRejected)
	s.log.WithField("challenge", res.ChallengeID).Infof("Login rejected: %s", reason)
	return res
}

func (s *Service) fail(ctx context.Context, res *LoginResult, err error) (*LoginResult, error) {
	res.Passed = false
	res.Reason = "error: " + err.Error()
	s.record(ctx, res, nil)
	s.metrics.LoginAttempt(metrics.OutcomeError)
	return nil, err
}

// record stores the attempt and archives the sample. Failures are logged
// only, the login decision stands.
func (s *Service) record(ctx context.Context, res *LoginResult, smp *sample) {
	ctx = context.WithoutCancel(ctx)

	if smp != nil && s.archive != nil {
		meta := &types.SampleMeta{
			Kind:         types.SampleLogin,
			Name:         nameOrAnonymous(res.Username),
			ChallengeID:  res.ChallengeID,
			Words:        smp.words,
			Transcript:   res.Transcript,
			IdentifiedID: res.IdentifiedProfileID,
			Confidence:   string(res.Confidence),
			Passed:       res.Passed,
			Duration:     smp.format.Duration().Seconds(),
		}
		path, err := s.archive.SaveSample(ctx, meta, smp.wav)
		if err != nil {
			s.log.WithError(err).Warn("Failed to archive login sample")
		}
		res.SamplePath = path
	}

	err := s.users.SaveAttempt(ctx, &types.Attempt{
		ChallengeID:  res.ChallengeID,
		Username:     res.Username,
		IdentifiedID: res.IdentifiedProfileID,
		Confidence:   string(res.Confidence),
		Transcript:   res.Transcript,
		WordsMatched: res.Words.Count,
		Passed:       res.Passed,
		Reason:       res.Reason,
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to save login attempt")
	}
}

// candidates returns the users a sample is identified against, or a
// rejection reason.
func (s *Service) candidates(ctx context.Context, username string) ([]*types.User, string, error) {
	if username != "" {
		u, err := s.users.UserByUsername(ctx, username)
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ReasonUnknownUser, nil
		}
		if err != nil {
			return nil, "", err
		}
		if !u.Enabled {
			return nil, ReasonUserDisabled, nil
		}
		return []*types.User{u}, "", nil
	}

	users, err := s.enrolledUsers(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(users) == 0 {
		return nil, ReasonNoCandidates, nil
	}
	return users, "", nil
}

// enrolledUsers returns the enabled users whose profile has finished
// enrollment. Azure fails a whole identification batch on a profile that is
// still enrolling.
func (s *Service) enrolledUsers(ctx context.Context) ([]*types.User, error) {
	users, err := s.users.ListUsers(ctx, true)
	if err != nil || len(users) == 0 {
		return nil, err
	}
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	ready := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		ready[p.ID] = p.Enrolled()
	}

	enrolled := users[:0]
	for _, u := range users {
		if ready[u.AzureID] {
			enrolled = append(enrolled, u)
		} else {
			s.log.WithField("user", u.Username).Debug("Skipping user without a trained profile")
		}
	}
	return enrolled, nil
}

// transcribe returns the recognized text; silence yields an empty string.
func (s *Service) transcribe(ctx context.Context, wav []byte) (string, error) {
	rec, err := s.speech.Recognize(ctx, bytes.NewReader(wav), s.settings.Recognition)
	if errors.Is(err, azure.ErrNoSpeech) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Text(), nil
}

// identify runs identification over the candidates in batches of at most
// azure.MaxCandidates profiles and keeps the most confident match. It
// returns nil when nobody was identified.
func (s *Service) identify(ctx context.Context, wav []byte, format audio.Format, candidates []*types.User) (*Identification, error) {
	byProfile := make(map[string]*types.User, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, u := range candidates {
		byProfile[u.AzureID] = u
		ids = append(ids, u.AzureID)
	}
	shortAudio := s.isShort(format)

	var best *Identification
	for start := 0; start < len(ids); start += azure.MaxCandidates {
		batch := ids[start:min(start+azure.MaxCandidates, len(ids))]

		opID, err := s.profiles.Identify(ctx, bytes.NewReader(wav), batch, shortAudio)
		if err != nil {
			return nil, err
		}
		op, err := s.profiles.WaitOperation(ctx, opID)
		if err != nil {
			return nil, err
		}
		if op.ProcessingResult == nil || !op.ProcessingResult.Identified() {
			continue
		}

		found := &Identification{
			ProfileID:  op.ProcessingResult.IdentifiedProfileID,
			User:       byProfile[op.ProcessingResult.IdentifiedProfileID],
			Confidence: op.ProcessingResult.Confidence,
		}
		if best == nil || found.Confidence.Rank() > best.Confidence.Rank() {
			best = found
		}
	}
	return best, nil
}

// IdentifySample identifies the speaker of a WAV file among every enrolled
// user. It returns nil when nobody was identified.
func (s *Service) IdentifySample(ctx context.Context, wavPath string) (*Identification, error) {
	users, err := s.enrolledUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errors.New(ReasonNoCandidates)
	}
	return s.identifySampleAgainst(ctx, wavPath, users)
}

// Transcribe runs speech-to-text on a WAV file.
func (s *Service) Transcribe(ctx context.Context, wavPath string, opts azure.RecognizeOptions) (*azure.Recognition, error) {
	wav, _, err := s.readWAV(wavPath)
	if err != nil {
		return nil, err
	}
	return s.speech.Recognize(ctx, bytes.NewReader(wav), opts)
}

func (s *Service) isShort(format audio.Format) bool {
	return s.settings.ShortAudioBelow > 0 && format.Duration() < s.settings.ShortAudioBelow
}

func (s *Service) readWAV(path string) ([]byte, audio.Format, error) {
	wav, err := os.ReadFile(path)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("read audio: %w", err)
	}
	format, err := audio.ParseWAV(bytes.NewReader(wav))
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("read audio %s: %w", path, err)
	}
	if !format.IsAzureReady() {
		return nil, format, fmt.Errorf("%w: got %d Hz, %d channel(s), %d bit", ErrAudioFormat,
			format.SampleRate, format.Channels, format.BitsPerSample)
	}
	if limit := s.settings.MaxDuration; limit > 0 && format.Duration() > limit {
		return nil, format, fmt.Errorf("%w: %s, limit is %s", ErrAudioTooLong, format.Duration(), limit)
	}
	return wav, format, nil
}

func nameOrAnonymous(username string) string {
	if username == "" {
		return "anonymous"
	}
	return username
}

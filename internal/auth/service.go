// Package auth ties the Azure clients, the challenge machinery and the user
// database together into the operations exposed by the HTTP API and the CLI.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/challenge"
	"github.com/codebuildervaibhav/hillmyna/internal/metrics"
	"github.com/codebuildervaibhav/hillmyna/internal/storage"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// ErrInvalidUsername is returned for empty or malformed usernames.
var ErrInvalidUsername = errors.New("username must be 1-64 letters, digits, '.', '-' or '_'")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// SpeechRecognizer turns speech into text.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, wav io.Reader, opts azure.RecognizeOptions) (*azure.Recognition, error)
}

// ProfileClient manages speaker identification profiles.
type ProfileClient interface {
	NewProfile(ctx context.Context) (string, error)
	DeleteProfile(ctx context.Context, profileID string) error
	GetProfile(ctx context.Context, profileID string) (*azure.Profile, error)
	ListProfiles(ctx context.Context) ([]azure.Profile, error)
	DeleteAllProfiles(ctx context.Context) ([]string, error)
	ResetEnrollments(ctx context.Context, profileID string) error
	Enroll(ctx context.Context, profileID string, wav io.Reader, shortAudio bool) (string, error)
	Identify(ctx context.Context, wav io.Reader, candidateIDs []string, shortAudio bool) (string, error)
	WaitOperation(ctx context.Context, operationID string) (*azure.Operation, error)
}

// UserStore persists users and login attempts.
type UserStore interface {
	AddUser(ctx context.Context, u *types.User) error
	RemoveUser(ctx context.Context, azureID string) error
	RemoveAllUsers(ctx context.Context) (int64, error)
	UserByAzureID(ctx context.Context, azureID string) (*types.User, error)
	UserByUsername(ctx context.Context, username string) (*types.User, error)
	ListUsers(ctx context.Context, enabledOnly bool) ([]*types.User, error)
	SetUserEnabled(ctx context.Context, username string, enabled bool) error
	SaveAttempt(ctx context.Context, a *types.Attempt) error
}

// SampleArchive keeps a copy of the audio used for logins and enrollments.
type SampleArchive interface {
	SaveSample(ctx context.Context, meta *types.SampleMeta, wav []byte) (string, error)
}

// Deps lists the collaborators of a Service. Archive and Metrics are optional.
type Deps struct {
	Speech   SpeechRecognizer
	Profiles ProfileClient
	Users    UserStore
	Issuer   *challenge.Issuer
	Matcher  *challenge.Matcher
	Archive  SampleArchive
	Metrics  *metrics.Metrics
	Log      *logrus.Entry
}

// Settings tunes login and enrollment decisions.
type Settings struct {
	// MinConfidence is the lowest identification confidence accepted.
	MinConfidence azure.Confidence
	// ShortAudioBelow enables Azure's shortAudio mode for shorter samples.
	ShortAudioBelow time.Duration
	// Recognition is passed to every speech-to-text call.
	Recognition azure.RecognizeOptions
	// MaxDuration rejects longer recordings before they reach Azure.
	MaxDuration time.Duration
}

// Service implements user management, enrollment and login.
type Service struct {
	speech   SpeechRecognizer
	profiles ProfileClient
	users    UserStore
	issuer   *challenge.Issuer
	matcher  *challenge.Matcher
	archive  SampleArchive
	metrics  *metrics.Metrics
	log      *logrus.Entry
	settings Settings
}

// NewService creates a Service.
func NewService(deps Deps, settings Settings) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Matcher == nil {
		deps.Matcher = challenge.NewMatcher(0, 0)
	}
	if settings.MinConfidence == "" {
		settings.MinConfidence = azure.ConfidenceNormal
	}

	return &Service{
		speech:   deps.Speech,
		profiles: deps.Profiles,
		users:    deps.Users,
		issuer:   deps.Issuer,
		matcher:  deps.Matcher,
		archive:  deps.Archive,
		metrics:  deps.Metrics,
		log:      deps.Log,
		settings: settings,
	}
}

// NewUser holds the details of a user to create.
type NewUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
}

// CreateUser creates an Azure identification profile and stores the user
// linked to it. The profile is deleted again when the user cannot be stored.
func (s *Service) CreateUser(ctx context.Context, nu NewUser) (*types.User, error) {
	if !usernamePattern.MatchString(nu.Username) {
		return nil, ErrInvalidUsername
	}
	switch _, err := s.users.UserByUsername(ctx, nu.Username); {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", storage.ErrUserExists, nu.Username)
	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, err
	}

	profileID, err := s.profiles.NewProfile(ctx)
	if err != nil {
		return nil, err
	}

	u := &types.User{
		AzureID:  profileID,
		Username: nu.Username,
		Name:     nu.Name,
		Surname:  nu.Surname,
		Enabled:  true,
	}
	if err := s.users.AddUser(ctx, u); err != nil {
		if delErr := s.profiles.DeleteProfile(context.WithoutCancel(ctx), profileID); delErr != nil {
			s.log.WithError(delErr).Warnf("Failed to delete orphaned profile %s", profileID)
		}
		return nil, err
	}

	s.log.Infof("Created user %s with profile %s", u.Username, u.AzureID)
	return u, nil
}

// DeleteUser removes the user and its Azure profile. A profile Azure no
// longer knows about does not prevent the local deletion.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := s.profiles.DeleteProfile(ctx, u.AzureID); err != nil {
		var apiErr *azure.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
			return err
		}
		s.log.Warnf("Profile %s of %s was already gone", u.AzureID, username)
	}

	if err := s.users.RemoveUser(ctx, u.AzureID); err != nil {
		return err
	}
	s.log.Infof("Deleted user %s", username)
	return nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]*types.User, error) {
	return s.users.ListUsers(ctx, false)
}

// User returns the stored user without querying Azure.
func (s *Service) User(ctx context.Context, username string) (*types.User, error) {
	return s.users.UserByUsername(ctx, username)
}

// SetUserEnabled enables or disables logins for a user.
func (s *Service) SetUserEnabled(ctx context.Context, username string, enabled bool) error {
	return s.users.SetUserEnabled(ctx, username, enabled)
}

// UserStatus combines a stored user with its Azure profile.
type UserStatus struct {
	User    *types.User    `json:"user"`
	Profile *azure.Profile `json:"profile"`
}

// UserStatus returns the user and the enrollment state of its profile.
func (s *Service) UserStatus(ctx context.Context, username string) (*UserStatus, error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetProfile(ctx, u.AzureID)
	if err != nil {
		return nil, err
	}
	return &UserStatus{User: u, Profile: p}, nil
}

// ResetEnrollments discards the enrollment audio of a user's profile.
func (s *Service) ResetEnrollments(ctx context.Context, username string) error {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.profiles.ResetEnrollments(ctx, u.AzureID)
}

// Profiles lists every identification profile of the Azure resource,
// including ones no local user points to.
func (s *Service) Profiles(ctx context.Context) ([]azure.Profile, error) {
	return s.profiles.ListProfiles(ctx)
}

// PurgeProfiles deletes every Azure profile and every local user. It returns
// the ids of the deleted profiles.
func (s *Service) PurgeProfiles(ctx context.Context) ([]string, error) {
	deleted, err := s.profiles.DeleteAllProfiles(ctx)
	if err != nil {
		return deleted, err
	}
	n, err := s.users.RemoveAllUsers(ctx)
	if err != nil {
		return deleted, err
	}
	s.log.Infof("Purged %d profiles and %d users", len(deleted), n)
	return deleted, nil
}

// Package app builds the dependency graph shared by the HTTP server and the
// command line tool from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/auth"
	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/challenge"
	"github.com/codebuildervaibhav/hillmyna/internal/config"
	"github.com/codebuildervaibhav/hillmyna/internal/credentials"
	"github.com/codebuildervaibhav/hillmyna/internal/metrics"
	"github.com/codebuildervaibhav/hillmyna/internal/storage"
	"github.com/codebuildervaibhav/hillmyna/internal/words"
)

// Wire bundles the stores, clients and services built from a Config.
type Wire struct {
	Config         *config.Config
	Log            *logrus.Entry
	Metrics        *metrics.Metrics
	Words          *words.Manager
	Speech         *azure.SpeechToTextClient
	Profiles       *azure.IdentificationClient
	DB             *storage.DB
	Archive        *storage.LocalStorage
	Drive          *storage.DriveClient
	Challenges     challenge.Store
	Redis          *redis.Client
	Service        *auth.Service
	EnrollmentText string
}

// NewWire constructs every component. Metrics are registered on reg when it
// is not nil. The caller must Close the returned Wire.
func NewWire(ctx context.Context, cfg *config.Config, log *logrus.Entry, reg prometheus.Registerer) (*Wire, error) {
	w := &Wire{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(reg),
	}

	var err error
	w.Words, err = words.Load(cfg.Path(cfg.Data.WordsFile), words.WithLogger(log.WithField("component", "words")))
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	log.Infof("Loaded %d challenge words", w.Words.Len())

	if err := w.buildAzure(log); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.SamplesDir, 0755); err != nil {
		return nil, fmt.Errorf("create samples directory: %w", err)
	}
	w.DB, err = storage.NewDB(cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path := cfg.Path(cfg.Data.UsersImportFile); path != "" {
		n, err := w.DB.ImportUsersJSON(ctx, path)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("import users: %w", err)
		}
		log.Infof("Imported %d users from %s", n, path)
	}

	w.buildDrive(ctx, log)
	var uploader storage.Uploader
	if w.Drive != nil {
		uploader = w.Drive
	}
	w.Archive = storage.NewLocalStorage(cfg.Storage.SamplesDir, uploader, log.WithField("component", "archive"))

	if err := w.buildChallengeStore(ctx); err != nil {
		w.Close()
		return nil, err
	}

	w.EnrollmentText = auth.LoadEnrollmentText(cfg.Path(cfg.Data.EnrollmentTextFile), log)

	w.Service = auth.NewService(auth.Deps{
		Speech:   w.Speech,
		Profiles: w.Profiles,
		Users:    w.DB,
		Issuer:   challenge.NewIssuer(w.Words, w.Challenges, cfg.Challenge.Words, cfg.Challenge.TTL),
		Matcher:  challenge.NewMatcher(cfg.Challenge.MatchThreshold, cfg.Challenge.PhoneticThreshold),
		Archive:  w.Archive,
		Metrics:  w.Metrics,
		Log:      log.WithField("component", "auth"),
	}, auth.Settings{
		MinConfidence:   azure.Confidence(cfg.Identification.MinConfidence),
		ShortAudioBelow: cfg.Identification.ShortAudioBelow,
		MaxDuration:     cfg.MaxDuration(),
		Recognition: azure.RecognizeOptions{
			Detailed: cfg.Azure.DetailedRecognition,
			Locale:   cfg.Azure.Locale,
		},
	})

	return w, nil
}

func (w *Wire) buildAzure(log *logrus.Entry) error {
	cfg := w.Config
	creds, err := credentials.Load(cfg.Path(cfg.Data.CredentialsFile))
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	speechCreds, err := creds.Get(cfg.Azure.SpeechResource)
	if err != nil {
		return err
	}
	identCreds, err := creds.Get(cfg.Azure.IdentificationResource)
	if err != nil {
		return err
	}

	opts := []azure.Option{
		azure.WithLogger(log.WithField("component", "azure")),
		azure.WithRetry(cfg.Azure.RetryMax, time.Second, 30*time.Second),
		azure.WithRequestsPerMinute(cfg.Azure.RequestsPerMinute),
		azure.WithObserver(w.Metrics.AzureRequest),
	}
	w.Speech = azure.NewSpeechToTextClient(speechCreds, cfg.Azure.Locale, opts...)
	w.Profiles = azure.NewIdentificationClient(identCreds, cfg.Azure.Locale,
		append(opts, azure.WithOperationPolling(cfg.Azure.OperationCheckInterval, cfg.Azure.OperationTimeout))...)
	return nil
}

// buildDrive connects to Google Drive when enabled. Samples are still kept
// locally when Drive is unavailable.
func (w *Wire) buildDrive(ctx context.Context, log *logrus.Entry) {
	gd := w.Config.GoogleDrive
	if !gd.Enabled {
		log.Info("Google Drive upload disabled - saving samples locally only")
		return
	}

	client, err := storage.NewDriveClient(ctx, gd.CredentialsFile, gd.TokenFile, gd.FolderName)
	if err != nil {
		if errors.Is(err, storage.ErrNoDriveToken) {
			log.Warn("Google Drive is not authorized yet; run `hillmyna drive auth`")
		} else {
			log.Warnf("Google Drive not available: %v", err)
		}
		return
	}
	w.Drive = client
	log.Info("Google Drive integration enabled")
}

func (w *Wire) buildChallengeStore(ctx context.Context) error {
	cfg := w.Config
	if cfg.Challenge.Store != config.StoreRedis {
		w.Challenges = challenge.NewMemoryStore()
		return nil
	}

	w.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := challenge.NewRedisStore(w.Redis)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	w.Challenges = store
	return nil
}

// SweepChallenges drops expired challenges from the in-memory store. Redis
// expires keys on its own.
func (w *Wire) SweepChallenges() int {
	if s, ok := w.Challenges.(*challenge.MemoryStore); ok {
		return s.Sweep()
	}
	return 0
}

// ReadyChecks returns the dependency probes reported by /ready.
func (w *Wire) ReadyChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": w.DB.Ping,
	}
	if s, ok := w.Challenges.(*challenge.RedisStore); ok {
		checks["redis"] = s.Ping
	}
	return checks
}

// Close releases the database and Redis connections.
func (w *Wire) Close() error {
	var errs []error
	if w.DB != nil {
		errs = append(errs, w.DB.Close())
	}
	if w.Redis != nil {
		errs = append(errs, w.Redis.Close())
	}
	return errors.Join(errs...)
}

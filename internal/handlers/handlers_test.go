package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/hillmyna/internal/audio"
	"github.com/codebuildervaibhav/hillmyna/internal/auth"
	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/challenge"
	"github.com/codebuildervaibhav/hillmyna/internal/logging"
	"github.com/codebuildervaibhav/hillmyna/internal/queue"
	"github.com/codebuildervaibhav/hillmyna/internal/storage"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
	"github.com/codebuildervaibhav/hillmyna/internal/words"
)

type fakeService struct {
	mu        sync.Mutex
	users     map[string]*types.User
	loginReq  auth.LoginRequest
	loginRes  *auth.LoginResult
	loginErr  error
	audioSeen bool
}

func newFakeService() *fakeService {
	return &fakeService{users: map[string]*types.User{}}
}

func (f *fakeService) IssueChallenge(_ context.Context, username string) (*challenge.Challenge, error) {
	return &challenge.Challenge{ID: "c-1", Username: username, Words: []string{"apple", "river"}}, nil
}

func (f *fakeService) Login(_ context.Context, req auth.LoginRequest) (*auth.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginReq = req
	if format, err := audio.ParseWAVFile(req.AudioPath); err == nil && format.IsAzureReady() {
		f.audioSeen = true
	}
	return f.loginRes, f.loginErr
}

func (f *fakeService) CreateUser(_ context.Context, nu auth.NewUser) (*types.User, error) {
	if _, ok := f.users[nu.Username]; ok {
		return nil, storage.ErrUserExists
	}
	u := &types.User{AzureID: "p-" + nu.Username, Username: nu.Username, Name: nu.Name, Enabled: true}
	f.users[nu.Username] = u
	return u, nil
}

func (f *fakeService) DeleteUser(_ context.Context, username string) error {
	if _, ok := f.users[username]; !ok {
		return storage.ErrUserNotFound
	}
	delete(f.users, username)
	return nil
}

func (f *fakeService) ListUsers(context.Context) ([]*types.User, error) {
	list := []*types.User{}
	for _, u := range f.users {
		list = append(list, u)
	}
	return list, nil
}

func (f *fakeService) User(_ context.Context, username string) (*types.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeService) UserStatus(ctx context.Context, username string) (*auth.UserStatus, error) {
	u, err := f.User(ctx, username)
	if err != nil {
		return nil, err
	}
	return &auth.UserStatus{User: u, Profile: &azure.Profile{ID: u.AzureID, EnrollmentStatus: azure.EnrollmentEnrolling}}, nil
}

func (f *fakeService) ResetEnrollments(ctx context.Context, username string) error {
	_, err := f.User(ctx, username)
	return err
}

func (f *fakeService) SetUserEnabled(ctx context.Context, username string, enabled bool) error {
	u, err := f.User(ctx, username)
	if err != nil {
		return err
	}
	u.Enabled = enabled
	return nil
}

type fakeJobs struct {
	jobs map[string]queue.EnrollJob
	err  error
}

func (f *fakeJobs) Enqueue(job *queue.EnrollJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeJobs) Get(id string) (queue.EnrollJob, bool) {
	job, ok := f.jobs[id]
	return job, ok
}

type fakeAttempts struct{}

func (fakeAttempts) ListAttempts(_ context.Context, limit int) ([]*types.Attempt, error) {
	return []*types.Attempt{{ID: int64(limit), Passed: true}}, nil
}

type testApp struct {
	app     *fiber.App
	service *fakeService
	jobs    *fakeJobs
	archive *storage.LocalStorage
	tempDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	tempDir := t.TempDir()
	log := logging.Discard()

	vocab, err := words.New([]string{"apple", "river", "yellow", "garden"})
	require.NoError(t, err)

	ta := &testApp{
		service: newFakeService(),
		jobs:    &fakeJobs{jobs: map[string]queue.EnrollJob{}},
		archive: storage.NewLocalStorage(t.TempDir(), nil, log),
		tempDir: tempDir,
	}

	buf := logging.NewBuffer(10)
	_, _ = buf.Write([]byte("hello log"))

	ta.app = fiber.New()
	Register(ta.app,
		NewInfoHandler(vocab, 3, "Read this.", fakeAttempts{}, ta.archive, buf, map[string]ReadyCheck{
			"database": func(context.Context) error { return nil },
		}),
		NewLoginHandler(ta.service, audio.Normalize, tempDir, 1, log),
		NewUserHandler(ta.service, ta.jobs, tempDir, 1, log),
		NewStreamHandler(ta.service, tempDir, 1, 0, 0, log),
	)
	return ta
}

func (ta *testApp) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &out)
	}
	return resp.StatusCode, out
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func testWAV() []byte {
	return audio.WrapPCMAsWAV(make([]byte, 32000), audio.SampleRate, audio.Channels, audio.BitsPerSample)
}

func TestHealthAndReady(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 200, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, 200, status)
	assert.Equal(t, "ready", body["status"])
}

func TestReady_FailingCheck(t *testing.T) {
	app := fiber.New()
	info := NewInfoHandler(nil, 0, "", nil, nil, nil, map[string]ReadyCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	app.Get("/ready", info.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestWords(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.do(t, httptest.NewRequest(http.MethodGet, "/words", nil))
	assert.Equal(t, 200, status)
	assert.Len(t, body["words"], 3)

	status, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/words?n=1", nil))
	assert.Equal(t, 400, status)
	assert.Equal(t, "ERR_INVALID_COUNT", body["code"])

	status, _ = ta.do(t, httptest.NewRequest(http.MethodGet, "/words?n=50", nil))
	assert.Equal(t, 400, status)
}

func TestEnrollmentTextAttemptsLogs(t *testing.T) {
	ta := newTestApp(t)

	_, body := ta.do(t, httptest.NewRequest(http.MethodGet, "/enrollment-text", nil))
	assert.Equal(t, "Read this.", body["text"])

	_, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/attempts?limit=7", nil))
	require.Len(t, body["attempts"], 1)
	assert.EqualValues(t, 7, body["attempts"].([]any)[0].(map[string]any)["id"])

	_, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/logs", nil))
	assert.Equal(t, []any{"hello log"}, body["logs"])
}

func TestIssueChallenge(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.do(t, jsonRequest(http.MethodPost, "/challenges", `{"username": "alice"}`))
	assert.Equal(t, 201, status)
	assert.Equal(t, "c-1", body["id"])
	assert.Equal(t, "alice", body["username"])

	status, _ = ta.do(t, httptest.NewRequest(http.MethodPost, "/challenges", nil))
	assert.Equal(t, 201, status, "the body is optional")
}

func TestLogin(t *testing.T) {
	ta := newTestApp(t)
	ta.service.loginRes = &auth.LoginResult{Passed: true, ChallengeID: "c-1", Username: "alice"}

	req := multipartRequest(t, "/login", map[string]string{"challenge_id": "c-1", "username": "alice"}, "rec.wav", testWAV())
	status, body := ta.do(t, req)
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["passed"])
	assert.Equal(t, "c-1", ta.service.loginReq.ChallengeID)
	assert.Equal(t, "alice", ta.service.loginReq.Username)
	assert.True(t, ta.service.audioSeen)

	entries, err := os.ReadDir(ta.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploads are removed after the login")
}

func TestLogin_Rejected(t *testing.T) {
	ta := newTestApp(t)
	ta.service.loginRes = &auth.LoginResult{ChallengeID: "c-1", Reason: auth.ReasonWordsMismatch}

	status, body := ta.do(t, multipartRequest(t, "/login", map[string]string{"challenge_id": "c-1"}, "rec.wav", testWAV()))
	assert.Equal(t, 401, status)
	assert.Equal(t, auth.ReasonWordsMismatch, body["reason"])
}

func TestLogin_AzureError(t *testing.T) {
	ta := newTestApp(t)
	ta.service.loginErr = &azure.APIError{Op: "Identification", StatusCode: 429, Message: "rate limit"}

	status, body := ta.do(t, multipartRequest(t, "/login", map[string]string{"challenge_id": "c-1"}, "rec.wav", testWAV()))
	assert.Equal(t, 502, status)
	assert.Equal(t, "ERR_AZURE", body["code"])
}

func TestLogin_RecordingTooLong(t *testing.T) {
	ta := newTestApp(t)
	ta.service.loginErr = fmt.Errorf("%w: 6m0s, limit is 5m0s", auth.ErrAudioTooLong)

	status, body := ta.do(t, multipartRequest(t, "/login", map[string]string{"challenge_id": "c-1"}, "rec.wav", testWAV()))
	assert.Equal(t, 400, status)
	assert.Equal(t, "ERR_AUDIO_TOO_LONG", body["code"])
}

func TestLogin_BadRequests(t *testing.T) {
	ta := newTestApp(t)

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  []byte
		code     string
	}{
		{"no challenge", nil, "rec.wav", testWAV(), "ERR_NO_CHALLENGE"},
		{"no file", map[string]string{"challenge_id": "c-1"}, "", nil, "ERR_NO_FILE"},
		{"bad extension", map[string]string{"challenge_id": "c-1"}, "rec.exe", testWAV(), "ERR_INVALID_FORMAT"},
		{"not audio", map[string]string{"challenge_id": "c-1"}, "rec.wav", []byte("just some text, not a recording"), "ERR_INVALID_FORMAT"},
		{"too large", map[string]string{"challenge_id": "c-1"}, "rec.wav", make([]byte, 2*1024*1024), "ERR_FILE_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ta.do(t, multipartRequest(t, "/login", tt.fields, tt.filename, tt.content))
			assert.Equal(t, 400, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestUsers(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.do(t, jsonRequest(http.MethodPost, "/users", `{"username": "alice", "name": "Alice"}`))
	assert.Equal(t, 201, status)
	assert.Equal(t, "p-alice", body["azure_id"])

	status, body = ta.do(t, jsonRequest(http.MethodPost, "/users", `{"username": "alice"}`))
	assert.Equal(t, 409, status)
	assert.Equal(t, "ERR_USER_EXISTS", body["code"])

	status, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, 200, status)
	assert.Len(t, body["users"], 1)

	status, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/users/alice", nil))
	assert.Equal(t, 200, status)
	assert.Equal(t, "p-alice", body["profile"].(map[string]any)["identificationProfileId"])

	status, body = ta.do(t, jsonRequest(http.MethodPatch, "/users/alice", `{"enabled": false}`))
	assert.Equal(t, 200, status)
	assert.Equal(t, false, body["enabled"])
	assert.False(t, ta.service.users["alice"].Enabled)

	status, _ = ta.do(t, jsonRequest(http.MethodPatch, "/users/alice", `{}`))
	assert.Equal(t, 400, status)

	status, _ = ta.do(t, httptest.NewRequest(http.MethodPost, "/users/alice/reset", nil))
	assert.Equal(t, 200, status)

	status, _ = ta.do(t, httptest.NewRequest(http.MethodDelete, "/users/alice", nil))
	assert.Equal(t, 204, status)

	status, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/users/alice", nil))
	assert.Equal(t, 404, status)
	assert.Equal(t, "ERR_USER_NOT_FOUND", body["code"])
}

func TestEnrollAndJob(t *testing.T) {
	ta := newTestApp(t)
	_, err := ta.service.CreateUser(context.Background(), auth.NewUser{Username: "alice"})
	require.NoError(t, err)

	status, body := ta.do(t, multipartRequest(t, "/users/alice/enroll", nil, "enroll.wav", testWAV()))
	assert.Equal(t, 202, status)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.FileExists(t, ta.jobs.jobs[jobID].FilePath)

	status, body = ta.do(t, httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil))
	assert.Equal(t, 200, status)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, types.StatusQueued, body["status"])

	status, _ = ta.do(t, httptest.NewRequest(http.MethodGet, "/jobs/unknown", nil))
	assert.Equal(t, 404, status)

	status, _ = ta.do(t, multipartRequest(t, "/users/bob/enroll", nil, "enroll.wav", testWAV()))
	assert.Equal(t, 404, status)

	ta.jobs.err = queue.ErrQueueFull
	status, body = ta.do(t, multipartRequest(t, "/users/alice/enroll", nil, "enroll.wav", testWAV()))
	assert.Equal(t, 503, status)
	assert.Equal(t, "ERR_QUEUE_FULL", body["code"])
}

func TestSamples(t *testing.T) {
	ta := newTestApp(t)
	rel, err := ta.archive.SaveSample(context.Background(), &types.SampleMeta{Kind: types.SampleLogin, Name: "alice"}, testWAV())
	require.NoError(t, err)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/samples/"+rel, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "wav")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, testWAV(), data)

	status, _ := ta.do(t, httptest.NewRequest(http.MethodGet, "/samples/2026/01/01/missing.wav", nil))
	assert.Equal(t, 404, status)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	ta := newTestApp(t)
	status, _ := ta.do(t, httptest.NewRequest(http.MethodGet, "/ws/login", nil))
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
}

func TestNewStreamHandler_Budget(t *testing.T) {
	log := logging.Discard()

	h := NewStreamHandler(nil, t.TempDir(), 10, 2*time.Second, 0, log)
	assert.Equal(t, 64000, h.maxBytes, "two seconds of 16 kHz mono 16-bit PCM")

	h = NewStreamHandler(nil, t.TempDir(), 1, 5*time.Minute, 0, log)
	assert.Equal(t, 1024*1024, h.maxBytes, "the size limit is smaller")

	h = NewStreamHandler(nil, t.TempDir(), 0, time.Second, 0, log)
	assert.Equal(t, 32000, h.maxBytes)
}

func TestStreamSession(t *testing.T) {
	s := &streamSession{maxBytes: 8}

	_, err := s.handle(websocket.BinaryMessage, []byte{1, 2})
	assert.ErrorIs(t, err, errNoChallenge, "audio before the control message")

	_, err = s.handle(websocket.TextMessage, []byte(`{"username": "alice"}`))
	assert.ErrorIs(t, err, errNoChallenge)

	done, err := s.handle(websocket.TextMessage, []byte(`{"challenge_id": "c-1", "username": "alice"}`))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "c-1", s.control.ChallengeID)

	done, err = s.handle(websocket.BinaryMessage, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.False(t, done)

	done, err = s.handle(websocket.BinaryMessage, []byte{1, 2, 3, 4, 5})
	assert.Error(t, err)
	assert.True(t, done, "oversized recordings end the stream")

	done, err = s.handle(websocket.TextMessage, []byte("END"))
	require.NoError(t, err)
	assert.True(t, done)

	format, err := audio.ParseWAV(bytes.NewReader(s.wav()))
	require.NoError(t, err)
	assert.True(t, format.IsAzureReady())
	assert.EqualValues(t, 4, format.DataSize)
}

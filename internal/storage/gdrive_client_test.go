package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// fakeDrive answers folder lookups and creations, remembering created names.
type fakeDrive struct {
	mu      sync.Mutex
	created []string
	queries []string
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"files": []}`))
	case http.MethodPost:
		var file drive.File
		_ = json.NewDecoder(r.Body).Decode(&file)
		f.created = append(f.created, file.Name)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "id-" + file.Name})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestDriveClient_EnsureDateFolder(t *testing.T) {
	fake := &fakeDrive{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	service, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	dc := &DriveClient{service: service, folderID: "root-id", now: time.Now}
	id, err := dc.ensureDateFolder(context.Background(), time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "id-03", id)
	assert.Equal(t, []string{"2026", "02", "03"}, fake.created)
	require.Len(t, fake.queries, 3)
	assert.Contains(t, fake.queries[0], "'root-id' in parents")
	assert.Contains(t, fake.queries[1], "'id-2026' in parents")
}

func TestNewDriveClient_NoToken(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"installed": {
		"client_id": "id", "client_secret": "secret",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"redirect_uris": ["urn:ietf:wg:oauth:2.0:oob"]}}`), 0600))

	_, err := NewDriveClient(context.Background(), creds, filepath.Join(dir, "token.json"), "HillMyna")
	assert.ErrorIs(t, err, ErrNoDriveToken)

	_, err = NewDriveClient(context.Background(), filepath.Join(dir, "missing.json"), "", "HillMyna")
	assert.Error(t, err)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `it\'s`, escapeQuery("it's"))
}

package credentials

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `resource,key,endpoint
SpeechBS2019,speech-key,https://westeurope.stt.speech.microsoft.com/
SpeakerBS2019,speaker-key,https://westeurope.api.cognitive.microsoft.com/spid/v1.0
broken,line
too,many,fields,here
`

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"SpeakerBS2019", "SpeechBS2019"}, m.Resources())

	speech, err := m.Get("SpeechBS2019")
	require.NoError(t, err)
	assert.Equal(t, "speech-key", speech.Key)
	assert.Equal(t, "https://westeurope.stt.speech.microsoft.com/", speech.Endpoint)

	speaker, err := m.Get("SpeakerBS2019")
	require.NoError(t, err)
	assert.Equal(t, "https://westeurope.api.cognitive.microsoft.com/spid/v1.0/", speaker.Endpoint)
}

func TestParse_HeaderOnlyLineIsSkipped(t *testing.T) {
	m, err := Parse(strings.NewReader("SpeechBS2019,k,https://e/\n"))
	require.NoError(t, err)
	assert.Empty(t, m.Resources())
}

func TestGet_Missing(t *testing.T) {
	m := New(map[string]Credentials{"a": {Key: "k", Endpoint: "https://a"}})

	_, err := m.Get("b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "'b'")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Resources(), 2)

	_, err = Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, err = Load(dir)
	assert.Error(t, err)
}

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ketohub/internal/errors"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteFile(path string, data []byte) error {
	args := m.Called(path, data)
	return args.Error(0)
}

func TestSaveMetadata_ExactBytes(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteFile", "downloads/foo/metadata.json", []byte("{\n    \"dummy_key\":\"dummy value\"\n}")).Return(nil)

	s, err := NewStorage(Options{Root: "downloads", WriteFile: w.WriteFile}, nil)
	require.NoError(t, err)

	info, err := s.SaveMetadata("foo", NewMetadata().Set("dummy_key", "dummy value"))
	require.NoError(t, err)
	assert.Equal(t, "metadata", info.Type)
	w.AssertExpectations(t)
}

func TestSaveHTML_FlatPath(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteFile", "downloads/foo/index.html", []byte("<html></html>")).Return(nil)

	s, err := NewStorage(Options{Root: "downloads", WriteFile: w.WriteFile}, nil)
	require.NoError(t, err)

	info, err := s.SaveHTML("foo", []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "downloads/foo/index.html", info.Path)
	assert.Equal(t, HTMLFile, info.Filename)
	assert.EqualValues(t, 13, info.Size)
	w.AssertExpectations(t)
}

func TestSaveImage_SessionPath(t *testing.T) {
	session := NewSession(time.Date(2017, 4, 15, 11, 5, 9, 0, time.FixedZone("EST", -5*3600)))
	w := new(mockWriter)
	w.On("WriteFile", "downloads/20170415/160509Z/foo/main.jpg", []byte{0xff, 0xd8}).Return(nil)

	s, err := NewStorage(Options{Root: "downloads", Layout: LayoutSession, Session: session, WriteFile: w.WriteFile}, nil)
	require.NoError(t, err)

	_, err = s.SaveImage("foo", []byte{0xff, 0xd8})
	require.NoError(t, err)
	w.AssertExpectations(t)
}

func TestSave_WriteFailure(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteFile", mock.Anything, mock.Anything).Return(fmt.Errorf("disk full"))

	s, err := NewStorage(Options{Root: "downloads", WriteFile: w.WriteFile}, nil)
	require.NoError(t, err)

	_, err = s.SaveHTML("foo", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsStorageError(err))
	assert.Equal(t, "downloads/foo/index.html", errors.GetContext(err)["path"])
	assert.Contains(t, err.Error(), "failed to write index.html caused by: disk full")
}

func TestWriteFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "main.jpg")
	require.NoError(t, writeFile(path, []byte{0xff}))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	err := writeFile(filepath.Join(blocker, "child", "index.html"), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create directory")
}

func TestNewStorage_Validation(t *testing.T) {
	_, err := NewStorage(Options{}, nil)
	assert.Equal(t, errors.ErrMissingDownloadRoot, err)

	_, err = NewStorage(Options{Root: "downloads", Layout: "nested"}, nil)
	assert.True(t, errors.IsConfigurationError(err))

	_, err = NewStorage(Options{Root: "downloads", Layout: LayoutSession}, nil)
	assert.True(t, errors.IsType(err, errors.ValidationError))
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutFlat, l)

	l, err = ParseLayout("session")
	require.NoError(t, err)
	assert.Equal(t, LayoutSession, l)
}

func TestStorage_WritesToDisk(t *testing.T) {
	root := t.TempDir()
	s, err := NewStorage(Options{Root: root}, nil)
	require.NoError(t, err)

	_, err = s.SaveHTML("ruled-me_keto-pie", []byte("first"))
	require.NoError(t, err)
	_, err = s.SaveHTML("ruled-me_keto-pie", []byte("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "ruled-me_keto-pie", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestMetadata_Encoding(t *testing.T) {
	assert.Equal(t, "{}", mustMarshal(t, NewMetadata()))

	md := NewMetadata().
		Set("url", "https://www.ruled.me/keto-pie/?a=1&b=<2>").
		Set("referer", "https://www.ruled.me/keto-recipes/")
	md.Set("url", "https://www.ruled.me/keto-pie/")

	want := "{\n" +
		"    \"url\":\"https://www.ruled.me/keto-pie/\",\n" +
		"    \"referer\":\"https://www.ruled.me/keto-recipes/\"\n" +
		"}"
	got := mustMarshal(t, md)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"url", "referer"}, md.Keys())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, "https://www.ruled.me/keto-pie/", decoded["url"])

	html := mustMarshal(t, NewMetadata().Set("url", "https://x/?a=1&b=<2>"))
	assert.Contains(t, html, `"https://x/?a=1&b=<2>"`)
}

func TestSession(t *testing.T) {
	s := NewSession(time.Date(2017, 4, 15, 21, 0, 7, 0, time.UTC))
	assert.Equal(t, "20170415", s.Date())
	assert.Equal(t, "210007Z", s.Time())
	assert.Equal(t, "20170415/210007Z", s.String())
	assert.True(t, Session{}.IsZero())
}

func mustMarshal(t *testing.T, md *Metadata) string {
	t.Helper()
	data, err := md.MarshalJSON()
	require.NoError(t, err)
	return string(data)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ketohub/internal/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestKeyCommand(t *testing.T) {
	out, err := execute(t, "key", "https://www.mock.com/Mikes_Chicken_Kiev/", "http://ruled.me/")
	require.NoError(t, err)
	assert.Equal(t, "mock-com_mikes-chicken-kiev\nruled-me\n", out)
}

func TestSitesCommand(t *testing.T) {
	out, err := execute(t, "sites")
	require.NoError(t, err)
	assert.Contains(t, out, "ketoconnect")
	assert.Contains(t, out, "https://www.ruled.me/keto-recipes/")
	assert.Contains(t, out, "ruled-me-legacy")
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "init-config", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "download_root: download_output")
}

func TestCrawl_EmptyDownloadRootIsFatal(t *testing.T) {
	_, err := execute(t, "crawl", "--download-root", "", "--log-level", "ERROR")
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
	assert.Equal(t, errors.ErrMissingDownloadRoot, err)
}

func TestFailureBreakdown(t *testing.T) {
	assert.Equal(t, "", failureBreakdown(nil))
	assert.Equal(t, " (download=1 no_image=2)", failureBreakdown(map[string]int{"no_image": 2, "download": 1}))
}

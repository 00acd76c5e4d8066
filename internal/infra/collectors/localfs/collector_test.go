package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/internal/domain/collector"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := New(Config{
		ArtifactDir: t.TempDir(),
		Hostname:    "ws-0042",
	})
	require.NoError(t, err)
	return c
}

func newTarget(hostname, path string) collector.Target {
	return collector.Target{
		RequestID: uuid.New(),
		CaseID:    uuid.New(),
		Hostname:  hostname,
		Path:      path,
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{ArtifactDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DefaultName, c.Name())
	assert.Equal(t, collection.ObservableTypeFileLocation, c.ObservableType())
	assert.NotEmpty(t, c.hostname)
}

func TestNew_RequiresArtifactDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestCollect_CopiesFileAndHashes(t *testing.T) {
	c := newTestCollector(t)

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "malware.exe")
	content := []byte("not actually malware")
	require.NoError(t, os.WriteFile(srcPath, content, 0o600))

	target := newTarget("WS-0042", srcPath)
	res, err := c.Collect(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, collection.ResultSuccess, res.Kind)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.ArtifactHash)

	collected, err := os.ReadFile(res.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, content, collected)

	assert.Equal(t, target.CaseID.String(), filepath.Base(filepath.Dir(res.ArtifactPath)))
	assert.Contains(t, filepath.Base(res.ArtifactPath), target.RequestID.String())
}

func TestCollect_HostnameMismatchIsHostOffline(t *testing.T) {
	c := newTestCollector(t)

	res, err := c.Collect(context.Background(), newTarget("other-host", "/tmp/whatever"))
	require.NoError(t, err)
	assert.Equal(t, collection.ResultHostOffline, res.Kind)
	assert.Contains(t, res.Message, "other-host")
}

func TestCollect_MissingFileIsFileNotFound(t *testing.T) {
	c := newTestCollector(t)

	res, err := c.Collect(context.Background(), newTarget("ws-0042", filepath.Join(t.TempDir(), "gone.txt")))
	require.NoError(t, err)
	assert.Equal(t, collection.ResultFileNotFound, res.Kind)
}

func TestCollect_DirectoryIsFailed(t *testing.T) {
	c := newTestCollector(t)

	res, err := c.Collect(context.Background(), newTarget("ws-0042", t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, collection.ResultFailed, res.Kind)
}

func TestCollect_CancelledContext(t *testing.T) {
	c := newTestCollector(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Collect(ctx, newTarget("ws-0042", "/tmp/whatever"))
	assert.ErrorIs(t, err, context.Canceled)
}

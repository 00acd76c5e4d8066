// Package localfs provides the reference collector implementation. It
// collects file_location observables whose hostname matches the machine the
// worker runs on, copying the file into a local artifact directory.
package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/internal/domain/collector"
)

// DefaultName is the collector name registered when none is configured.
const DefaultName = "file_collector"

// Config tunes a local filesystem collector.
type Config struct {
	// Name is the collector name requests must address. Defaults to
	// DefaultName.
	Name string

	// ArtifactDir is the directory collected files are copied into.
	ArtifactDir string

	// Hostname overrides os.Hostname, mainly for tests.
	Hostname string
}

// Collector copies files from the local filesystem into the artifact
// directory. Requests addressed to a different hostname resolve as
// HOST_OFFLINE so they retry until the owning host's worker claims them.
type Collector struct {
	name        string
	artifactDir string
	hostname    string
}

// New creates a local filesystem collector.
func New(cfg Config) (*Collector, error) {
	if cfg.ArtifactDir == "" {
		return nil, errors.New("localfs: artifact directory is required")
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	hostname := cfg.Hostname
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("localfs: resolving hostname: %w", err)
		}
		hostname = h
	}
	if err := os.MkdirAll(cfg.ArtifactDir, 0o750); err != nil {
		return nil, fmt.Errorf("localfs: creating artifact directory: %w", err)
	}

	return &Collector{
		name:        name,
		artifactDir: cfg.ArtifactDir,
		hostname:    hostname,
	}, nil
}

// Name returns the collector name used for claim routing.
func (c *Collector) Name() string { return c.name }

// ObservableType returns the observable type this collector handles.
func (c *Collector) ObservableType() string { return collection.ObservableTypeFileLocation }

// Collect copies the target file into the artifact directory and returns its
// SHA-256. A hostname mismatch is HOST_OFFLINE, a missing file is
// FILE_NOT_FOUND; both are reported as results, not errors.
func (c *Collector) Collect(ctx context.Context, target collector.Target) (collector.Result, error) {
	if !strings.EqualFold(target.Hostname, c.hostname) {
		return collector.Result{
			Kind:    collection.ResultHostOffline,
			Message: fmt.Sprintf("host %s is not reachable from %s", target.Hostname, c.hostname),
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return collector.Result{}, err
	}

	src, err := os.Open(target.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return collector.Result{
				Kind:    collection.ResultFileNotFound,
				Message: fmt.Sprintf("%s does not exist on %s", target.Path, c.hostname),
			}, nil
		}
		return collector.Result{}, fmt.Errorf("opening %s: %w", target.Path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return collector.Result{}, fmt.Errorf("stat %s: %w", target.Path, err)
	}
	if info.IsDir() {
		return collector.Result{
			Kind:    collection.ResultFailed,
			Message: fmt.Sprintf("%s is a directory", target.Path),
		}, nil
	}

	artifactPath, hash, err := c.copyArtifact(target, src)
	if err != nil {
		return collector.Result{}, err
	}

	return collector.Result{
		Kind:         collection.ResultSuccess,
		Message:      fmt.Sprintf("collected %d bytes from %s", info.Size(), target.Hostname),
		ArtifactPath: artifactPath,
		ArtifactHash: hash,
	}, nil
}

// copyArtifact writes the source file under
// <artifactDir>/<caseID>/<requestID>_<basename> and returns the final path
// and content hash. The copy goes through a temp file so a crashed attempt
// never leaves a partial artifact at the final path.
func (c *Collector) copyArtifact(target collector.Target, src io.Reader) (string, string, error) {
	caseDir := filepath.Join(c.artifactDir, target.CaseID.String())
	if err := os.MkdirAll(caseDir, 0o750); err != nil {
		return "", "", fmt.Errorf("creating case directory: %w", err)
	}

	finalPath := filepath.Join(caseDir, target.RequestID.String()+"_"+filepath.Base(target.Path))

	tmp, err := os.CreateTemp(caseDir, ".collect-*")
	if err != nil {
		return "", "", fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), src); err != nil {
		tmp.Close()
		return "", "", fmt.Errorf("copying artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", fmt.Errorf("closing temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("finalizing artifact: %w", err)
	}

	return finalPath, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Package collectors assembles concrete collector implementations from
// configuration.
package collectors

import (
	"fmt"

	"github.com/forensiq/collectq/internal/config"
	"github.com/forensiq/collectq/internal/domain/collector"
	"github.com/forensiq/collectq/internal/infra/collectors/localfs"
)

// Build instantiates one collector per spec.
func Build(specs []config.CollectorSpec) ([]collector.Collector, error) {
	built := make([]collector.Collector, 0, len(specs))
	for _, spec := range specs {
		switch spec.Type {
		case config.CollectorTypeLocalFS:
			col, err := localfs.New(localfs.Config{
				Name:        spec.Name,
				ArtifactDir: spec.LocalFS.ArtifactDir,
				Hostname:    spec.LocalFS.Hostname,
			})
			if err != nil {
				return nil, fmt.Errorf("building collector %q: %w", spec.Name, err)
			}
			built = append(built, col)
		default:
			return nil, fmt.Errorf("building collector %q: unknown type %q", spec.Name, spec.Type)
		}
	}
	return built, nil
}

// BuildRegistry instantiates every configured collector and registers them.
func BuildRegistry(specs []config.CollectorSpec) (*collector.Registry, error) {
	built, err := Build(specs)
	if err != nil {
		return nil, err
	}
	return collector.NewRegistry(built...)
}

package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensiq/collectq/internal/domain/collection"
)

type stubCollector struct {
	name    string
	obsType string
}

func (s stubCollector) Name() string           { return s.name }
func (s stubCollector) ObservableType() string { return s.obsType }
func (s stubCollector) Collect(context.Context, Target) (Result, error) {
	return Result{Kind: collection.ResultSuccess}, nil
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(
		stubCollector{name: "file_collector", obsType: collection.ObservableTypeFileLocation},
		stubCollector{name: "memory_collector", obsType: "memory_region"},
	)
	require.NoError(t, err)

	c, ok := reg.Get("file_collector")
	require.True(t, ok)
	assert.Equal(t, "file_collector", c.Name())

	_, ok = reg.Get("unknown")
	assert.False(t, ok)

	caps := reg.Capabilities()
	require.Len(t, caps, 2)
	assert.Equal(t, collection.Capability{
		ObservableType: collection.ObservableTypeFileLocation,
		CollectorName:  "file_collector",
	}, caps[0], "capabilities are ordered by collector name")
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		stubCollector{name: "file_collector", obsType: collection.ObservableTypeFileLocation},
		stubCollector{name: "file_collector", obsType: collection.ObservableTypeFileLocation},
	)
	assert.Error(t, err)
}

func TestNewRegistry_RejectsEmptyName(t *testing.T) {
	_, err := NewRegistry(stubCollector{name: "", obsType: "memory_region"})
	assert.Error(t, err)
}

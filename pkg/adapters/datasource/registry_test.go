package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/apperrors"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	called := false
	Register(DatasourceAdapterRegistration{
		Info: DatasourceAdapterInfo{Type: "test_registry", DisplayName: "Test"},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (Adapter, error) {
			called = true
			return nil, errors.New("dial postgres://reader:hunter2@db:5432/sales: connection refused")
		},
	})

	assert.True(t, IsRegistered("test_registry"))
	assert.False(t, IsRegistered("nope"))

	found := false
	for _, info := range RegisteredAdapters() {
		if info.Type == "test_registry" {
			found = true
		}
	}
	assert.True(t, found)

	factory := NewDatasourceAdapterFactory(zap.NewNop())
	_, err := factory.NewAdapter(context.Background(), "test_registry", nil)
	require.Error(t, err)
	assert.True(t, called)
	assert.Contains(t, err.Error(), "open Test datasource")
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestFactory_UnsupportedType(t *testing.T) {
	factory := NewDatasourceAdapterFactory(zap.NewNop())

	Register(DatasourceAdapterRegistration{Info: DatasourceAdapterInfo{Type: "test_available"}})

	_, err := factory.NewAdapter(context.Background(), "oracle", nil)
	assert.ErrorIs(t, err, apperrors.ErrUnsupported)
	assert.Contains(t, err.Error(), "test_available")
}

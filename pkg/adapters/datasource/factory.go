package datasource

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdata/pkg/logging"
)

// DatasourceAdapterFactory opens adapters by type name.
type DatasourceAdapterFactory interface {
	NewAdapter(ctx context.Context, dsType string, config map[string]any) (Adapter, error)
}

type registryFactory struct {
	logger *zap.Logger
}

// NewDatasourceAdapterFactory returns a factory backed by the adapters
// registered at init time.
func NewDatasourceAdapterFactory(logger *zap.Logger) DatasourceAdapterFactory {
	return &registryFactory{logger: logger}
}

// NewAdapter opens dsType with config. Errors are sanitized so a connection
// string echoed by a driver never carries the password upward.
func (f *registryFactory) NewAdapter(ctx context.Context, dsType string, config map[string]any) (Adapter, error) {
	reg, ok := lookup(dsType)
	if !ok {
		return nil, fmt.Errorf("datasource type %q is not compiled in (available: %s): %w",
			dsType, strings.Join(registeredTypes(), ", "), apperrors.ErrUnsupported)
	}

	logger := f.logger.Named("datasource").With(zap.String("type", dsType))
	adapter, err := reg.Factory(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s datasource: %s", reg.Info.DisplayName, logging.SanitizeError(err))
	}
	logger.Debug("Datasource adapter opened", zap.String("dialect", adapter.Dialect()))
	return adapter, nil
}

var _ DatasourceAdapterFactory = (*registryFactory)(nil)

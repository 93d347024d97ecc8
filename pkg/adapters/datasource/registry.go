package datasource

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DatasourceAdapterInfo describes a compiled-in adapter.
type DatasourceAdapterInfo struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// AdapterFactory opens an adapter from generic settings.
type AdapterFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (Adapter, error)

type DatasourceAdapterRegistration struct {
	Info    DatasourceAdapterInfo
	Factory AdapterFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register makes an adapter available by type. Adapters call it from init,
// so importing an adapter package is what compiles it in. A later
// registration for the same type replaces the earlier one.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

func lookup(dsType string) (DatasourceAdapterRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[dsType]
	return reg, ok
}

// IsRegistered reports whether dsType is compiled in.
func IsRegistered(dsType string) bool {
	_, ok := lookup(dsType)
	return ok
}

// RegisteredAdapters returns every compiled-in adapter sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	registryMu.RUnlock()

	slices.SortFunc(result, func(a, b DatasourceAdapterInfo) int {
		return strings.Compare(a.Type, b.Type)
	})
	return result
}

func registeredTypes() []string {
	infos := RegisteredAdapters()
	types := make([]string, len(infos))
	for i, info := range infos {
		types[i] = info.Type
	}
	return types
}

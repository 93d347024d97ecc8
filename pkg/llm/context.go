package llm

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

type contextKey string

const (
	llmContextKey contextKey = "llm_context"
)

// WithContext returns a context with request attributes attached for LLM logging.
// The values map is merged with any existing attributes.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	existing := GetContext(ctx)
	if existing == nil {
		existing = make(map[string]any)
	}
	for k, v := range values {
		existing[k] = v
	}
	return context.WithValue(ctx, llmContextKey, existing)
}

// GetContext retrieves the attributes attached with WithContext, if present.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		// Return a copy to prevent mutation
		copy := make(map[string]any, len(c))
		for k, v := range c {
			copy[k] = v
		}
		return copy
	}
	return nil
}

// WithStageContext tags completion requests with the conversation thread and pipeline stage.
func WithStageContext(ctx context.Context, threadID, stage string) context.Context {
	values := map[string]any{"stage": stage}
	if threadID != "" {
		values["thread_id"] = threadID
	}
	return WithContext(ctx, values)
}

// contextFields converts the attached attributes into sorted zap fields.
func contextFields(ctx context.Context) []zap.Field {
	values := GetContext(ctx)
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+4)
	for _, k := range keys {
		fields = append(fields, zap.String(k, fmt.Sprint(values[k])))
	}
	return fields
}

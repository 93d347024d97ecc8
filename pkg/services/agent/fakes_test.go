package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// scriptedLLM returns a mock whose replies are queued per pipeline stage.
func scriptedLLM(t *testing.T, script map[Stage][]string) *llm.MockCompletionService {
	t.Helper()

	var mu sync.Mutex
	mock := llm.NewMockCompletionService()
	mock.CompleteFunc = func(ctx context.Context, messages []llm.Message) (string, error) {
		stage, _ := llm.GetContext(ctx)["stage"].(string)

		mu.Lock()
		defer mu.Unlock()
		queue := script[Stage(stage)]
		if len(queue) == 0 {
			return "", fmt.Errorf("no scripted reply for stage %q", stage)
		}
		script[Stage(stage)] = queue[1:]
		return queue[0], nil
	}
	return mock
}

// fakeExecutor answers statements from a map. Unknown statements fail.
type fakeExecutor struct {
	mu      sync.Mutex
	results map[string][]models.Row
	errors  map[string]error
	calls   []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		results: make(map[string][]models.Row),
		errors:  make(map[string]error),
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, statement string) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statement)

	if err, ok := f.errors[statement]; ok {
		return nil, err
	}
	if rows, ok := f.results[statement]; ok {
		return rows, nil
	}
	return nil, fmt.Errorf("unexpected statement: %s", statement)
}

func (f *fakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeIntrospector struct {
	mu     sync.Mutex
	schema models.Schema
	err    error
	calls  int
}

func (f *fakeIntrospector) Discover(ctx context.Context) (models.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.schema.Clone(), nil
}

func (f *fakeIntrospector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ordersSchema() models.Schema {
	return models.Schema{
		"orders": {
			Columns: []models.ColumnSchema{
				{Name: "id", Type: "INTEGER", IsPK: true},
				{Name: "status", Type: "TEXT"},
				{Name: "amount", Type: "REAL"},
				{Name: "created_at", Type: "TEXT"},
			},
			Categorical: map[string][]string{"status": {"open", "paid"}},
		},
	}
}

func row(columns []string, values ...any) models.Row {
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		m[c] = values[i]
	}
	return models.NewRow(columns, m)
}

func stages(mock *llm.MockCompletionService) []Stage {
	out := make([]Stage, 0, len(mock.Stages))
	for _, s := range mock.Stages {
		out = append(out, Stage(s))
	}
	return out
}

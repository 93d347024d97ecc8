// test-model-outputs checks that candidate models answer the pipeline's
// structured prompts in a shape the agent can parse. It sends the same
// classifier and planner prompts to each model and reports failures.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
	"github.com/ekaya-inc/ekaya-askdata/pkg/prompts"
)

// sampleSchema is a small commerce schema with one categorical column.
var sampleSchema = models.Schema{
	"customers": {
		Columns: []models.ColumnSchema{
			{Name: "customer_id", Type: "TEXT", IsPK: true},
			{Name: "customer_state", Type: "TEXT"},
		},
		Categorical: map[string][]string{"customer_state": {"SP", "RJ", "MG"}},
	},
	"orders": {
		Columns: []models.ColumnSchema{
			{Name: "order_id", Type: "TEXT", IsPK: true},
			{Name: "customer_id", Type: "TEXT"},
			{Name: "order_status", Type: "TEXT"},
			{Name: "order_purchase_timestamp", Type: "TIMESTAMP"},
		},
		Categorical: map[string][]string{"order_status": {"delivered", "shipped", "canceled"}},
	},
}

type classifierCase struct {
	question string
	want     models.QuestionType
}

var classifierCases = []classifierCase{
	{question: "How many orders were delivered last month?", want: models.QuestionTypeSQL},
	{question: "Hi there, what can you do?", want: models.QuestionTypeDirect},
}

const plannerQuestion = "Which customer state has the most canceled orders?"

type planReply struct {
	Steps        []string `json:"steps"`
	TablesNeeded []string `json:"tables_needed"`
	Approach     string   `json:"approach"`
}

type result struct {
	model    string
	check    string
	elapsed  time.Duration
	ok       bool
	detail   string
	response string
}

func main() {
	provider := flag.String("provider", envOr("LLM_PROVIDER", llm.ProviderOpenAI), "llm provider: openai or anthropic")
	endpoint := flag.String("endpoint", os.Getenv("LLM_BASE_URL"), "base URL for OpenAI-compatible endpoints")
	modelList := flag.String("models", os.Getenv("LLM_MODELS"), "comma-separated model names")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-request timeout")
	verbose := flag.Bool("v", false, "print raw responses")
	flag.Parse()

	names := splitModels(*modelList)
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "no models given: pass -models or set LLM_MODELS")
		os.Exit(2)
	}

	logger := zap.NewNop()
	var results []result

	for _, name := range names {
		client, err := llm.NewCompletionService(*provider, &llm.Config{
			Endpoint:    *endpoint,
			Model:       name,
			APIKey:      os.Getenv("LLM_API_KEY"),
			Temperature: 0,
			MaxTokens:   1024,
		}, logger)
		if err != nil {
			results = append(results, result{model: name, check: "setup", detail: err.Error()})
			continue
		}

		fmt.Printf("Testing %s...\n", name)
		for _, c := range classifierCases {
			results = append(results, checkClassifier(client, c, *timeout))
		}
		results = append(results, checkPlanner(client, *timeout))
	}

	failed := report(results, *verbose)
	if failed > 0 {
		os.Exit(1)
	}
}

func checkClassifier(client llm.CompletionService, c classifierCase, timeout time.Duration) result {
	r := result{model: client.GetModel(), check: "classify: " + c.question}

	raw, elapsed, err := complete(client, timeout,
		prompts.BuildClassifierSystemMessage(),
		prompts.BuildQuestionPrompt(c.question))
	r.elapsed, r.response = elapsed, raw
	if err != nil {
		r.detail = err.Error()
		return r
	}

	word := strings.ToLower(strings.TrimSpace(raw))
	if word != string(models.QuestionTypeSQL) && word != string(models.QuestionTypeDirect) {
		r.detail = fmt.Sprintf("expected a single word, got %q", truncate(raw, 60))
		return r
	}
	if got := models.ParseQuestionType(raw); got != c.want {
		r.detail = fmt.Sprintf("classified as %s, want %s", got, c.want)
		return r
	}
	r.ok = true
	return r
}

func checkPlanner(client llm.CompletionService, timeout time.Duration) result {
	r := result{model: client.GetModel(), check: "plan: " + plannerQuestion}

	raw, elapsed, err := complete(client, timeout,
		prompts.BuildPlannerSystemMessage(),
		prompts.BuildPlannerPrompt(sampleSchema, plannerQuestion))
	r.elapsed, r.response = elapsed, raw
	if err != nil {
		r.detail = err.Error()
		return r
	}

	parsed := llm.ParseStructured[planReply](raw)
	if !parsed.IsStructured() {
		r.detail = "reply is not JSON"
		return r
	}
	plan := parsed.Value
	switch {
	case len(plan.Steps) == 0:
		r.detail = "no steps"
	case strings.TrimSpace(plan.Approach) == "":
		r.detail = "empty approach"
	default:
		for _, table := range plan.TablesNeeded {
			if _, ok := sampleSchema[table]; !ok {
				r.detail = fmt.Sprintf("unknown table %q in tables_needed", table)
				return r
			}
		}
		r.ok = true
	}
	return r
}

func complete(client llm.CompletionService, timeout time.Duration, system, user string) (string, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	raw, err := client.Complete(ctx, []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage(user),
	})
	return raw, time.Since(start), err
}

func report(results []result, verbose bool) int {
	fmt.Println()
	failed := 0
	for _, r := range results {
		status := "PASS"
		if !r.ok {
			status = "FAIL"
			failed++
		}
		fmt.Printf("[%s] %-40s %-55s %6.1fs", status, r.model, truncate(r.check, 55), r.elapsed.Seconds())
		if r.detail != "" {
			fmt.Printf("  %s", r.detail)
		}
		fmt.Println()
		if verbose && r.response != "" {
			fmt.Printf("    %s\n", strings.ReplaceAll(truncate(r.response, 500), "\n", "\n    "))
		}
	}
	fmt.Printf("\n%d/%d checks passed\n", len(results)-failed, len(results))
	return failed
}

func splitModels(list string) []string {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

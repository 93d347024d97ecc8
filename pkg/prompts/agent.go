// Package prompts builds the system and user messages sent to the
// completion service by each pipeline stage.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

const notAvailable = "N/A"

// BuildResolverSystemMessage returns the system message for follow-up rewriting.
func BuildResolverSystemMessage() string {
	return `You are a query contextualizer.
Your job is to rewrite follow-up questions into fully self-contained questions using the conversation history.
If the question is NOT a follow-up, return it unchanged.
Return only the rewritten question, nothing else.`
}

// BuildResolverPrompt lists the conversation so far, the last executed SQL and
// result summary, and the new question.
func BuildResolverPrompt(history []models.ConversationTurn, lastSQL, lastSummary, question string) string {
	var prompt strings.Builder

	prompt.WriteString("Conversation history:\n")
	for _, turn := range history {
		prompt.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
	}

	prompt.WriteString("\nLast SQL executed:\n")
	prompt.WriteString(orNotAvailable(lastSQL))
	prompt.WriteString("\n\nLast result summary:\n")
	prompt.WriteString(orNotAvailable(lastSummary))
	prompt.WriteString("\n\nNew question:\n")
	prompt.WriteString(question)

	return prompt.String()
}

// BuildClassifierSystemMessage returns the system message asking for exactly sql or direct.
func BuildClassifierSystemMessage() string {
	return `You are a classifier for a business data analytics assistant backed by a SQL database.
Classify questions into exactly one of:
- "sql"    → requires querying the database to answer
- "direct" → greeting, meta question, or answerable without data

Respond with ONLY the word: sql  OR  direct`
}

// BuildQuestionPrompt is the single-line user message used by the
// classifier and the direct answer.
func BuildQuestionPrompt(question string) string {
	return "Question: " + question
}

// BuildPlannerSystemMessage returns the system message for query planning.
func BuildPlannerSystemMessage() string {
	return `You are a senior data analyst. Plan how to answer business questions using a database.

Always respond with ONLY valid JSON, no markdown, with this structure:
{
  "steps": ["list of reasoning steps"],
  "tables_needed": ["table names required"],
  "approach": "one-sentence description of the SQL strategy"
}`
}

// BuildPlannerPrompt pairs the one-line-per-table schema with the question.
func BuildPlannerPrompt(schema models.Schema, question string) string {
	var prompt strings.Builder
	prompt.WriteString("Schema:\n")
	prompt.WriteString(FormatSchema(schema))
	prompt.WriteString("\n\nQuestion: ")
	prompt.WriteString(question)
	return prompt.String()
}

// BuildGeneratorSystemMessage returns the system message for SQL generation.
// dialect names the datasource engine, e.g. "SQLite" or "PostgreSQL".
func BuildGeneratorSystemMessage(dialect string) string {
	var prompt strings.Builder
	prompt.WriteString(fmt.Sprintf("You are a %s expert. Write a single SELECT query to answer the question.\n\n", dialect))
	prompt.WriteString("Rules:\n")
	prompt.WriteString("- Only SELECT statements (no writes)\n")
	prompt.WriteString("- All column/table names must exist in the schema provided\n")
	prompt.WriteString("- Verify the categorical_columns and the values to match the words before filtering the data\n")
	prompt.WriteString(fmt.Sprintf("- Use proper %s date functions where needed\n", dialect))
	prompt.WriteString("- Return ONLY the SQL query, no explanation, no markdown")
	return prompt.String()
}

// BuildGeneratorPrompt includes categorical values so filters can use exact literals.
func BuildGeneratorPrompt(schema models.Schema, plan *models.Plan, question string) string {
	var prompt strings.Builder
	prompt.WriteString("Schema:\n")
	prompt.WriteString(FormatSchemaWithValues(schema))
	prompt.WriteString("\n\nQuery plan:\n")
	prompt.WriteString(planJSON(plan))
	prompt.WriteString("\n\nQuestion: ")
	prompt.WriteString(question)
	return prompt.String()
}

// BuildRepairSystemMessage returns the system message for fixing a failed statement.
func BuildRepairSystemMessage(dialect string) string {
	return fmt.Sprintf(`You are a %s expert fixing a broken query.
Return ONLY the corrected SQL query, no explanation, no markdown.`, dialect)
}

// BuildRepairPrompt shows the failed statement and the error it produced.
func BuildRepairPrompt(schema models.Schema, question, failedSQL, execErr string) string {
	var prompt strings.Builder
	prompt.WriteString("Schema:\n")
	prompt.WriteString(FormatSchemaWithValues(schema))
	prompt.WriteString("\n\nOriginal question: ")
	prompt.WriteString(question)
	prompt.WriteString("\n\nBroken SQL:\n")
	prompt.WriteString(failedSQL)
	prompt.WriteString("\n\nError:\n")
	prompt.WriteString(execErr)
	return prompt.String()
}

// BuildDirectAnswerSystemMessage returns the system message for questions that need no data.
func BuildDirectAnswerSystemMessage() string {
	return "You are a helpful data analytics assistant. Answer questions concisely."
}

// BuildFinalizerSystemMessage returns the system message for narrating results
// and choosing a visualization.
func BuildFinalizerSystemMessage() string {
	return `You are a business data analyst. Given a question, SQL query, and results:
1. Interpret the results and write a concise, business-focused answer.
2. Pick the best visualization using this guide:
   - "table" → ranked lists, multi-column detail, or >10 rows
   - "bar"   → comparison across categories (1 categorical + 1-2 numeric columns)
   - "line"  → time series / trends (date column + numeric column)
   - "pie"   → proportions with ≤8 categories (2 columns only)
   - "none"  → single scalar value

Always respond with valid JSON only, no markdown:
{"answer": "...", "viz_type": "table|bar|line|pie|none"}`
}

// BuildFinalizerPrompt shows at most sampleRows rows but reports the true total.
func BuildFinalizerPrompt(question, executedSQL string, rows []models.Row, sampleRows int) string {
	sample := rows
	if len(sample) > sampleRows {
		sample = sample[:sampleRows]
	}
	if sample == nil {
		sample = []models.Row{}
	}

	results, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		results = []byte(fmt.Sprintf("%v", sample))
	}

	var prompt strings.Builder
	prompt.WriteString("Question: ")
	prompt.WriteString(question)
	prompt.WriteString("\n\nSQL executed:\n")
	prompt.WriteString(executedSQL)
	prompt.WriteString(fmt.Sprintf("\n\nResults (%d rows total, showing up to %d):\n", len(rows), sampleRows))
	prompt.Write(results)
	return prompt.String()
}

func planJSON(plan *models.Plan) string {
	if plan == nil {
		return "{}"
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return plan.Approach
	}
	return string(data)
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

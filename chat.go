package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

const (
	defaultChatThread = "cli-session"
	chatPreviewRows   = 20
	maxChatLineBytes  = 1 << 20
)

// asker is the part of the orchestrator the REPL needs.
type asker interface {
	Invoke(ctx context.Context, threadID, question string) (*models.TurnResult, error)
}

func newChatCmd(configPath *string) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively in the terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return runChat(cmd.Context(), os.Stdin, cmd.OutOrStdout(), app.orchestrator, threadID)
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", defaultChatThread, "conversation thread ID")
	return cmd
}

// runChat reads one question per line until EOF, "exit" or "quit".
func runChat(ctx context.Context, in io.Reader, out io.Writer, a asker, threadID string) error {
	fmt.Fprintln(out, "Ekaya Data Assistant (type 'exit' to quit)")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxChatLineBytes)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "exit", "quit":
			return nil
		case "":
			continue
		}

		result, err := a.Invoke(ctx, threadID, question)
		if err != nil {
			fmt.Fprintf(out, "\nError: %v\n\n", err)
			continue
		}
		printTurn(out, result)
	}
}

func printTurn(out io.Writer, result *models.TurnResult) {
	answer := result.FinalAnswer
	if answer == "" {
		answer = "No answer generated."
	}
	fmt.Fprintf(out, "\nAssistant: %s\n", answer)

	if result.LastSQLQuery != nil && *result.LastSQLQuery != "" {
		fmt.Fprintf(out, "\n[SQL]\n%s\n", *result.LastSQLQuery)
	}

	if result.DataVizType != nil && *result.DataVizType != models.VizTypeNone {
		fmt.Fprintf(out, "[Visualization hint: %s]\n", *result.DataVizType)
	}

	if len(result.QueryResult) > 0 {
		fmt.Fprintln(out)
		renderRows(out, result.QueryResult, chatPreviewRows)
	}

	fmt.Fprintln(out)
}

// renderRows prints up to limit rows as a table using the first row's column order.
func renderRows(out io.Writer, rows []models.Row, limit int) {
	if len(rows) == 0 {
		return
	}
	columns := rows[0].Columns

	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(columns)

	for i, row := range rows {
		if i == limit {
			break
		}
		cells := make([]string, len(columns))
		for j, col := range columns {
			v, _ := row.Get(col)
			cells[j] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()

	if len(rows) > limit {
		fmt.Fprintf(out, "(%d of %d rows shown)\n", limit, len(rows))
	}
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/interview"
)

func analyzeCmd() *cobra.Command {
	var (
		questionID string
		answer     string
		mock       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score one answer to a bank question",
		Long: `Score one answer without starting a session.

The answer comes from --answer, or from stdin when stdin is piped:

  echo "I led the migration..." | coach analyze --question teammate-conflict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if answer == "" {
				text, err := readAnswer(os.Stdin)
				if err != nil {
					return err
				}
				answer = text
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			c, err := buildCore(ctx, cfg, mock, nil)
			if err != nil {
				return err
			}

			a, err := c.coach.AnalyzeOnce(ctx, analysis.Request{QuestionID: questionID, Answer: answer})
			switch {
			case errors.Is(err, interview.ErrUnknownQuestion):
				return &UserError{Message: err.Error(), Suggestion: "list ids with: coach questions"}
			case errors.Is(err, analysis.ErrEmptyAnswer):
				return &UserError{Message: "the answer is empty", Suggestion: "pass --answer or pipe text on stdin"}
			case err != nil:
				return err
			}
			printAnalysis(cmd.OutOrStdout(), a)
			return nil
		},
	}

	cmd.Flags().StringVarP(&questionID, "question", "q", "", "Question id from the bank")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "Answer text (default: read stdin)")
	cmd.Flags().BoolVar(&mock, "mock", false, "Use the built-in mock provider")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

// readAnswer reads the answer from f unless it is an interactive terminal.
func readAnswer(f *os.File) (string, error) {
	if term.IsTerminal(int(f.Fd())) {
		return "", &UserError{
			Message:    "no answer given",
			Suggestion: "pass --answer \"...\" or pipe the answer on stdin",
		}
	}
	return readAll(f)
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printAnalysis(w io.Writer, a analysis.Analysis) {
	fmt.Fprintf(w, "Score: %d/10", a.Score)
	if a.Fallback {
		fmt.Fprint(w, " (generic guidance, the model was unavailable)")
	}
	fmt.Fprintln(w)
	if a.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", a.Summary)
	}
	printList(w, "Strengths", a.Strengths)
	printList(w, "To improve", a.Weaknesses)
	printList(w, "Tips", a.Tips)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

func questionsCmd() *cobra.Command {
	var (
		file       string
		category   string
		difficulty string
	)

	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			bank := questions.DefaultBank()
			if file != "" {
				b, err := questions.LoadBank(file)
				if err != nil {
					return &UserError{Message: "failed to load question bank", Cause: err,
						Suggestion: "each entry needs id, text, category and difficulty"}
				}
				bank = b
			}

			cat := questions.Category(category)
			if cat != "" && !cat.Valid() {
				return &UserError{
					Message:    fmt.Sprintf("unknown category %q", category),
					Suggestion: "use one of: " + categoryList(),
				}
			}
			var diff *questions.Difficulty
			if difficulty != "" {
				d, err := questions.ParseDifficulty(difficulty)
				if err != nil {
					return &UserError{Message: "bad --difficulty", Cause: err, Suggestion: "use easy, medium or hard"}
				}
				diff = &d
			}

			return printQuestions(cmd.OutOrStdout(), bank.Filter(cat, diff))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML question bank (default: built-in)")
	cmd.Flags().StringVar(&category, "category", "", "Only this category")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Only this difficulty")
	return cmd
}

func printQuestions(w io.Writer, qs []questions.Question) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tLEVEL\tQUESTION")
	for _, q := range qs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", q.ID, q.Category, q.Difficulty, q.Text)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d questions\n", len(qs))
	return err
}

func categoryList() string {
	names := make([]string, len(questions.Categories))
	for i, c := range questions.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}


package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lunar-stra95/coach-coral-mistral/internal/llm"
)

// UserError is an error shown to the user with a hint on how to fix it.
type UserError struct {
	Message    string
	Cause      error
	Suggestion string
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// providerError turns provider construction failures into a UserError.
func providerError(err error) error {
	var mk *llm.MissingKeyError
	if errors.As(err, &mk) {
		return &UserError{
			Message:    fmt.Sprintf("no API key for the %s provider", mk.Provider),
			Cause:      err,
			Suggestion: fmt.Sprintf("export %s (or put it in .env), pick another llm.provider, or run with --mock", mk.EnvVar),
		}
	}
	return &UserError{
		Message:    "failed to create LLM provider",
		Cause:      err,
		Suggestion: "check the llm section of your config",
	}
}

// FormatUserError renders err for the terminal.
func FormatUserError(err error) string {
	var sb strings.Builder

	var userErr *UserError
	if errors.As(err, &userErr) {
		sb.WriteString(fmt.Sprintf("\033[91mError:\033[0m %s\n", userErr.Message))
		if userErr.Cause != nil {
			sb.WriteString(fmt.Sprintf("       Cause: %v\n", userErr.Cause))
		}
		if userErr.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("\n\033[93mSuggestion:\033[0m %s\n", userErr.Suggestion))
		}
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\033[91mError:\033[0m %s\n", err))
	if s := suggestionFor(err.Error()); s != "" {
		sb.WriteString(fmt.Sprintf("\n\033[93mSuggestion:\033[0m %s\n", s))
	}
	return sb.String()
}

func suggestionFor(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "address already in use"):
		return "another process holds the port; pass --port or change server.port"
	case strings.Contains(lower, "invalid config"):
		return "fix the listed fields in your config file"
	case strings.Contains(lower, "question bank"):
		return "check questions.file; each entry needs id, text, category and difficulty"
	case strings.Contains(lower, "no valid credential"), strings.Contains(lower, "security token"):
		return "configure AWS credentials (aws configure) for the bedrock provider"
	}
	return ""
}

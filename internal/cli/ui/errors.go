// Package ui renders terminal output for the relcol command: tables and
// formatted error messages with suggestions.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates an error message with suggestions and help commands
//
// Example output:
//
//	✗ MODEL NOT FOUND: Cannot find model 'Dumy'.
//
//	   Did you mean: wide.Dummy?
//
//	   → See all models: relcol models
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var header *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		header = color.New(color.FgYellow, color.Bold)
		symbol = "!"
	case ErrorLevelInfo:
		header = color.New(color.FgCyan, color.Bold)
		symbol = "i"
	default:
		header = color.New(color.FgRed, color.Bold)
		symbol = "✗"
	}
	if opts.NoColor {
		header.DisableColor()
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ModelNotFoundError reports an unknown model reference
func ModelNotFoundError(ref string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "model not found",
		Problem:      fmt.Sprintf("Cannot find model '%s'.", ref),
		Suggestions:  suggestions,
		HelpCommands: []string{"See all models: relcol models"},
		NoColor:      noColor,
	})
}

// RelationNotFoundError reports an unknown relation of a model
func RelationNotFoundError(model, name string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "relation not found",
		Problem:      fmt.Sprintf("Model '%s' has no relation '%s'.", model, name),
		Suggestions:  suggestions,
		HelpCommands: []string{fmt.Sprintf("See its relations: relcol models %s", model)},
		NoColor:      noColor,
	})
}

// ConfigError reports a configuration that failed to load or build
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"View config: cat relcol.yaml",
			"Get help: relcol --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}

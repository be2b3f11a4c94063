package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

// Out receives all UI output. Tests may redirect it.
var Out io.Writer = os.Stderr

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(Out, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(Out, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(Out, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(Out, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(Out, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(Out, "  "+format+"\n", a...)
}

// --- Summaries ---

// PrintSummary prints the created/modified/skipped/failed lists of an operation.
func PrintSummary(title string, created, modified, skipped, failed []string, message string) {
	Header("\n--- %s ---", title)
	if message != "" {
		Info(message)
	}

	if len(created) == 0 && len(modified) == 0 && len(skipped) == 0 && len(failed) == 0 {
		Info("Nothing was produced.")
		return
	}

	printList(SuccessColor, "Created %d file(s):", created)
	printList(SuccessColor, "Processed %d file(s):", modified)
	printList(WarningColor, "Skipped %d item(s):", skipped)
	printList(ErrorColor, "Failed %d item(s):", failed)
}

func printList(c *color.Color, format string, items []string) {
	if len(items) == 0 {
		return
	}
	c.Fprintf(Out, format+"\n", len(items))
	for _, item := range items {
		fmt.Fprintf(Out, "  - %s\n", item)
	}
}

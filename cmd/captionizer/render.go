package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) *color.Color {
	switch kind {
	case statusOK:
		return color.New(color.FgGreen)
	case statusWarn:
		return color.New(color.FgYellow)
	case statusError:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgBlue)
	}
}

// paint renders s in the colour for kind when colorize is set.
func paint(kind statusKind, s string, colorize bool) string {
	c := statusKindColor(kind)
	if colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func statusCell(kind statusKind, colorize bool) string {
	return paint(kind, statusKindLabel(kind), colorize)
}

func passFail(passed bool) statusKind {
	if passed {
		return statusOK
	}
	return statusError
}

// isTerminal reports whether writer is an interactive terminal.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func shouldColorize(writer io.Writer) bool {
	return isTerminal(writer) && os.Getenv("NO_COLOR") == ""
}

func printLine(w io.Writer, kind statusKind, colorize bool, format string, args ...any) {
	fmt.Fprintln(w, paint(kind, fmt.Sprintf(format, args...), colorize))
}

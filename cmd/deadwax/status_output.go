package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusFail
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var statusViews = map[statusKind]struct {
	label string
	color string
}{
	statusInfo: {"INFO", ansiBlue},
	statusOK:   {"OK", ansiGreen},
	statusWarn: {"WARN", ansiYellow},
	statusFail: {"FAIL", ansiRed},
}

// statusLine renders one "label: [STATE] detail" line, colorized when the
// destination is a terminal.
func statusLine(label string, kind statusKind, detail string, colorize bool) string {
	view := statusViews[kind]
	state := "[" + view.label + "]"
	if detail != "" {
		state += " " + detail
	}
	line := fmt.Sprintf("  %-22s %s", label+":", state)
	if colorize && view.color != "" {
		line = view.color + line + ansiReset
	}
	return line
}

func sectionHeader(out io.Writer, title string, colorize bool) {
	line := "== " + title + " =="
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

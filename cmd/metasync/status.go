package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

const checkNameWidth = 18

// renderCheck formats one doctor result as "  ok    Name   detail".
func renderCheck(name string, passed bool, detail string, colorize bool) string {
	mark, color := "FAIL", text.Colors{text.FgRed, text.Bold}
	if passed {
		mark, color = "ok", text.Colors{text.FgGreen}
	}
	mark = fmt.Sprintf("%-4s", mark)
	if colorize {
		mark = color.Sprint(mark)
	}
	return fmt.Sprintf("  %s  %-*s %s", mark, checkNameWidth, name, detail)
}

func renderHeading(title string, colorize bool) string {
	if colorize {
		return text.Colors{text.FgBlue, text.Bold}.Sprint(title)
	}
	return title
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

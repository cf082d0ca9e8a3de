package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"metasync/internal/syncengine"
	"metasync/internal/walker"
)

// progressLine keeps a single carriage-returned status line up to date. It
// is silent unless requested and out is a terminal.
type progressLine struct {
	out     io.Writer
	enabled bool

	mu      sync.Mutex
	total   int
	done    int
	width   int
	written bool
}

func newProgressLine(out io.Writer, requested bool, total int) *progressLine {
	return &progressLine{out: out, enabled: requested && isTerminal(out), total: total}
}

// Event reports engine work as it starts.
func (p *progressLine) Event(ev syncengine.Event) {
	if !p.enabled {
		return
	}
	var stage string
	switch ev.Stage {
	case "season":
		stage = fmt.Sprintf("season %d", ev.Season)
	case "episode":
		stage = fmt.Sprintf("S%02dE%02d images", ev.Season, ev.Episode)
	default:
		stage = ev.Stage
	}
	p.render(fmt.Sprintf("%s: %s", filepath.Base(ev.Directory), stage))
}

// DirectoryDone counts a finished directory.
func (p *progressLine) DirectoryDone(result walker.DirectoryResult) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.done++
	p.mu.Unlock()
	p.render(fmt.Sprintf("%s: %s", filepath.Base(result.Path), result.Outcome))
}

// Finish terminates the line so later output starts on a fresh one.
func (p *progressLine) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.written {
		fmt.Fprintln(p.out)
		p.written = false
	}
}

func (p *progressLine) render(detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := fmt.Sprintf("[%d/%d] %s", p.done, p.total, detail)
	pad := ""
	if n := len(line); n < p.width {
		pad = strings.Repeat(" ", p.width-n)
	} else {
		p.width = n
	}
	fmt.Fprint(p.out, "\r"+line+pad)
	p.written = true
}

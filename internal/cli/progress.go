package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/MimeLyc/batch-sub-translator/internal/service"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
	"github.com/MimeLyc/batch-sub-translator/pkg/icron"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

const (
	liveInterval = "@every 250ms"
	barWidth     = 24
)

// progressReporter prints orchestrator progress while a command waits on
// it: a redrawn single line on terminals, periodic log lines elsewhere.
type progressReporter struct {
	out      io.Writer
	live     bool
	snapshot func() service.Snapshot

	mu      sync.Mutex
	lastPct int
	drawn   bool
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// startProgress reports every interval until stop is called. interval is a
// cron descriptor; terminals use a faster fixed rate.
func startProgress(out io.Writer, interval string, snapshot func() service.Snapshot) (stop func(), err error) {
	p := &progressReporter{
		out:      out,
		live:     isTerminal(out),
		snapshot: snapshot,
		lastPct:  -1,
	}
	if p.live {
		interval = liveInterval
	}
	stopSchedule, err := icron.Schedule(interval, p.tick)
	if err != nil {
		return nil, err
	}
	return func() {
		stopSchedule()
		p.finish()
	}, nil
}

func (p *progressReporter) tick() {
	snap := p.snapshot()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live {
		fmt.Fprintf(p.out, "\r%s", progressLine(snap))
		p.drawn = true
		return
	}
	if snap.Progress.Percent == p.lastPct {
		return
	}
	p.lastPct = snap.Progress.Percent
	log.Info("progress %d/%d (%d%%), %d failed batches", snap.Progress.Done, snap.Progress.Total, snap.Progress.Percent, len(snap.FailedBatches))
}

func (p *progressReporter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live && p.drawn {
		fmt.Fprintf(p.out, "\r%s\n", progressLine(p.snapshot()))
	}
}

func progressLine(snap service.Snapshot) string {
	filled := snap.Progress.Percent * barWidth / 100
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	state := string(snap.State)
	if snap.State == service.StateIdle && snap.Outcome != service.OutcomeNone {
		state = string(snap.Outcome)
	}
	counts := snap.Counts()
	return fmt.Sprintf("[%s] %3d%% %d/%d  errors:%d  %s",
		bar, snap.Progress.Percent, snap.Progress.Done, snap.Progress.Total,
		counts[subtitle.StatusError], state)
}

package output

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/relaysync/relaysync/pkg/events"
)

// progressBarTemplate drives the live bar rendered for `sync --watch`,
// adding rsync's own transfer speed alongside the percentage.
const progressBarTemplate = `{{ "Syncing:" }} {{bar . }} {{percent . }} {{string . "speed"}}`

// ProgressBar renders live task-progress events from the Event Bus.
// When stdout is not an interactive terminal (piped output, a cron
// log) it falls back to one plain-text line per distinct percentage
// instead of redrawing a bar, the way teacher's progress formatter
// gated its ANSI redraws on terminal detection.
type ProgressBar struct {
	writer      io.Writer
	interactive bool
}

// NewProgressBar builds a ProgressBar writing to stdout, auto-detecting
// whether stdout is attached to a terminal.
func NewProgressBar() *ProgressBar {
	return &ProgressBar{
		writer:      os.Stdout,
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Watch subscribes to bus for taskID's progress events and renders them
// until ctx is canceled or done is closed by the caller once the run
// completes.
func (p *ProgressBar) Watch(ctx context.Context, bus *events.Bus, taskID int64, done <-chan struct{}) {
	ch := make(chan events.Progress, 16)
	sub := bus.SubscribeProgress(ch)
	defer bus.UnsubscribeProgress(sub)

	if p.interactive {
		p.watchInteractive(ctx, ch, taskID, done)
		return
	}
	p.watchPlain(ctx, ch, taskID, done)
}

func (p *ProgressBar) watchInteractive(ctx context.Context, ch <-chan events.Progress, taskID int64, done <-chan struct{}) {
	bar := pb.New(100)
	bar.SetWriter(p.writer)
	bar.SetTemplateString(progressBarTemplate)
	bar.Start()
	defer bar.Finish()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.TaskID != taskID {
				continue
			}
			bar.SetCurrent(int64(ev.Percent))
			bar.Set("speed", ev.Speed)
		}
	}
}

func (p *ProgressBar) watchPlain(ctx context.Context, ch <-chan events.Progress, taskID int64, done <-chan struct{}) {
	last := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.TaskID != taskID || ev.Percent == last {
				continue
			}
			last = ev.Percent
			fmt.Fprintf(p.writer, "sync: %d%% %s\n", ev.Percent, ev.Speed)
		}
	}
}

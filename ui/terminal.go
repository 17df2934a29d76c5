package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)

	notificationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().Faint(true)
)

// Terminal renders notifications and dialogs on a text stream. Dialogs wait
// for a line on in; a nil in makes them return immediately.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	in     *bufio.Reader
	logger *slog.Logger
}

// NewTerminal returns a Terminal writing to out and reading from in.
func NewTerminal(out io.Writer, in io.Reader, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Terminal{out: out, logger: logger}
	if in != nil {
		t.in = bufio.NewReader(in)
	}
	return t
}

func (t *Terminal) ShowNotification(ctx context.Context, msg string, d time.Duration) {
	if d <= 0 {
		d = DefaultNotificationTime
	}
	t.write(notificationStyle.Render(msg))
	t.logger.Debug("notification shown", slog.String("message", msg), slog.Duration("time", d))
}

func (t *Terminal) ShowError(ctx context.Context, heading, msg string) {
	t.write(errorStyle.Render(headingStyle.Render(heading) + "\n" + msg))
}

func (t *Terminal) ShowOKDialog(ctx context.Context, heading, msg string) {
	body := headingStyle.Render(heading) + "\n" + msg
	if t.in != nil {
		body += "\n" + hintStyle.Render("press enter to continue")
	}
	t.write(dialogStyle.Render(body))

	if t.in == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.in.ReadString('\n')
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (t *Terminal) ContainerUpdate(ctx context.Context, path string, replace bool) {
	t.logger.Info("navigate", slog.String("path", path), slog.Bool("replace", replace))
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, strings.TrimRight(s, "\n"))
}

// Package notify sends desktop notifications about autosave problems.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Runner executes a notification command. It exists so tests can record
// commands instead of running them.
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Notifier posts notifications through osascript on macOS and notify-send
// elsewhere. Repeats of the same message inside the quiet window are
// dropped so a failing autosave does not raise one alert per attempt.
type Notifier struct {
	goos  string
	run   Runner
	quiet time.Duration
	now   func() time.Time

	mu       sync.Mutex
	lastKey  string
	lastSent time.Time
}

type Option func(*Notifier)

func WithRunner(r Runner) Option { return func(n *Notifier) { n.run = r } }

func WithOS(goos string) Option { return func(n *Notifier) { n.goos = goos } }

func WithQuietPeriod(d time.Duration) Option { return func(n *Notifier) { n.quiet = d } }

func WithClock(now func() time.Time) Option { return func(n *Notifier) { n.now = now } }

func New(opts ...Option) *Notifier {
	n := &Notifier{
		goos:  runtime.GOOS,
		run:   execRunner,
		quiet: time.Minute,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send posts a notification. It returns nil without posting when the same
// title and message were sent within the quiet period.
func (n *Notifier) Send(title, message string) error {
	key := title + "\x00" + message
	n.mu.Lock()
	now := n.now()
	if key == n.lastKey && now.Sub(n.lastSent) < n.quiet {
		n.mu.Unlock()
		return nil
	}
	n.lastKey, n.lastSent = key, now
	n.mu.Unlock()

	name, args := n.command(title, message)
	return n.run(name, args...)
}

func (n *Notifier) command(title, message string) (string, []string) {
	if n.goos == "darwin" {
		script := fmt.Sprintf(
			`display notification "%s" with title "%s" sound name "default"`,
			escapeAppleScript(message), escapeAppleScript(title),
		)
		return "osascript", []string{"-e", script}
	}
	return "notify-send", []string{"--app-name=chedit", title, message}
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

type clipboardMethod uint8

const (
	clipboardMethodSystem clipboardMethod = iota
	clipboardMethodOSC52
)

const envDisableOSC52 = "CBOT_DISABLE_OSC52"

var (
	clipboardWriteAll   = clipboard.WriteAll
	clipboardWriteOSC52 = writeOSC52Clipboard
)

// clipboardError reports why neither the system clipboard nor the terminal
// accepted the text.
type clipboardError struct {
	system error
	osc52  error
}

func (e *clipboardError) Error() string {
	if noDisplay() {
		return "no GUI clipboard (DISPLAY and WAYLAND_DISPLAY unset); OSC52: " + describeClipboardFailure(e.osc52)
	}
	return "system clipboard: " + describeClipboardFailure(e.system) + "; OSC52: " + describeClipboardFailure(e.osc52)
}

func (e *clipboardError) Unwrap() []error {
	return []error{e.system, e.osc52}
}

// copyTextToClipboard tries the system clipboard, then an OSC52 escape
// sequence written to the controlling terminal.
func copyTextToClipboard(text string) (clipboardMethod, error) {
	systemErr := clipboardWriteAll(text)
	if systemErr == nil {
		return clipboardMethodSystem, nil
	}
	if oscErr := clipboardWriteOSC52(text); oscErr != nil {
		return clipboardMethodSystem, &clipboardError{system: systemErr, osc52: oscErr}
	}
	return clipboardMethodOSC52, nil
}

func writeOSC52Clipboard(text string) error {
	if !shouldAttemptOSC52() {
		return errors.New("terminal does not support OSC52")
	}
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer tty.Close()
	return writeOSC52Sequence(tty, text)
}

// writeOSC52Sequence writes the forms the current multiplexer understands.
// Under tmux both the plain and the passthrough form are sent since
// allow-passthrough varies between setups.
func writeOSC52Sequence(w io.Writer, text string) error {
	seq := osc52.New(text)
	forms := []osc52.Sequence{seq}
	switch {
	case os.Getenv("TMUX") != "":
		forms = append(forms, seq.Tmux())
	case strings.HasPrefix(strings.ToLower(os.Getenv("TERM")), "screen"):
		forms = []osc52.Sequence{seq.Screen()}
	}
	for _, form := range forms {
		if _, err := form.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

func shouldAttemptOSC52() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envDisableOSC52))) {
	case "1", "true", "yes", "on":
		return false
	}
	term := strings.TrimSpace(os.Getenv("TERM"))
	return term != "" && !strings.EqualFold(term, "dumb")
}

func describeClipboardFailure(err error) string {
	if err == nil {
		return "ok"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "exit status 1" {
		return "clipboard helper exited with status 1"
	}
	return msg
}

func noDisplay() bool {
	return strings.TrimSpace(os.Getenv("DISPLAY")) == "" && strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) == ""
}

package app

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"cbot/internal/logging"
)

const toastDuration = 4 * time.Second

type toastLevel int

const (
	toastLevelInfo toastLevel = iota
	toastLevelWarning
	toastLevelError
)

var toastLevels = [...]struct {
	name  string
	icon  string
	style *lipgloss.Style
}{
	toastLevelInfo:    {name: "info", icon: "✓", style: &toastInfoStyle},
	toastLevelWarning: {name: "warning", icon: "!", style: &toastWarningStyle},
	toastLevelError:   {name: "error", icon: "✗", style: &toastErrorStyle},
}

func (l toastLevel) spec() int {
	if l < toastLevelInfo || l > toastLevelError {
		return int(toastLevelInfo)
	}
	return int(l)
}

func (l toastLevel) String() string {
	return toastLevels[l.spec()].name
}

// showToast replaces any visible toast. Blank messages are ignored.
func (m *Model) showToast(level toastLevel, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	m.toastText, m.toastLevel = message, level
	m.toastUntil = m.now().Add(toastDuration)
	m.logger.Debug("toast", logging.F("level", level.String()), logging.F("message", message))
}

func (m *Model) clearToast() {
	m.toastText, m.toastLevel, m.toastUntil = "", toastLevelInfo, time.Time{}
}

func (m *Model) toastActive(at time.Time) bool {
	switch {
	case m.toastText == "":
		return false
	case m.toastUntil.IsZero():
		return true
	default:
		return at.Before(m.toastUntil)
	}
}

// toastLine renders the active toast right-aligned in width, or "".
func (m *Model) toastLine(width int) string {
	if width <= 0 || !m.toastActive(m.now()) {
		return ""
	}
	spec := toastLevels[m.toastLevel.spec()]
	body := spec.icon + " " + truncateToWidth(m.toastText, max(1, width-6))
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, spec.style.Render(" "+body+" "))
}

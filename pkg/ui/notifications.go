package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"boorudl/pkg/crawler"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier sends run notifications to the desktop when the platform allows it
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a new Notifier based on the current platform
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// NewNotifierWithSender creates a Notifier using sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// RunFinished reports a finished run. Delivery errors are ignored.
func (n *Notifier) RunFinished(s crawler.Summary) {
	if n.sender == nil {
		return
	}

	totals := s.Totals()
	title := "boorudl: run finished"
	if !s.OK() {
		title = fmt.Sprintf("boorudl: %d worker(s) failed", s.Failed)
	}
	message := fmt.Sprintf("%d new, %d already present, %d searched in %s",
		totals.Downloaded, totals.Duplicates, totals.Searched, formatElapsed(s.Elapsed))

	_ = n.sender.Send(title, message)
}

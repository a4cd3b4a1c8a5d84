// Package notify is the user-facing notification seam. Every cart or
// order mutation ends in exactly one Success or Error call; transports
// (toast, email, push) plug in behind the interface.
package notify

import "log"

type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNotifier writes notifications to the process log. It is the default
// sink; the HTTP layer additionally reflects outcomes in response bodies.
type LogNotifier struct{}

func (LogNotifier) Success(message string) {
	log.Printf("notify success: %s", message)
}

func (LogNotifier) Error(message string) {
	log.Printf("notify error: %s", message)
}

// Discard drops notifications. Useful in tests that assert on state only.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}

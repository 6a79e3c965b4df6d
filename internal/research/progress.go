package research

import "log"

// ProgressEmitter receives human-readable status strings as the pipeline
// runs. Delivery may briefly block the caller; it never signals completion
// or failure of the pipeline itself.
type ProgressEmitter interface {
	Progress(message string)
}

// EmitterFunc adapts a function to ProgressEmitter
type EmitterFunc func(message string)

func (f EmitterFunc) Progress(message string) { f(message) }

// LogEmitter writes progress messages to a logger. Used by the one-shot
// CLI command and the monitor scheduler, where no client is attached.
type LogEmitter struct {
	Logger *log.Logger
}

func (l LogEmitter) Progress(message string) {
	if l.Logger != nil {
		l.Logger.Printf("%s", message)
	}
}

// NopEmitter discards progress messages
type NopEmitter struct{}

func (NopEmitter) Progress(string) {}

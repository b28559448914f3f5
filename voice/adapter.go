// Package voice wraps an environment-provided single-utterance
// speech-to-text session. Each session emits exactly one final
// transcript or one error, and the adapter always ends back in the
// idle state.
package voice

import (
	"errors"
	"fmt"
	"sync"
)

// ErrorKind categorizes speech failures.
type ErrorKind int

const (
	// KindNoSpeech: the session timed out without detecting speech.
	KindNoSpeech ErrorKind = iota
	// KindPermissionDenied: microphone access was refused.
	KindPermissionDenied
	// KindNetwork: the transcription backend was unreachable.
	KindNetwork
	// KindUnsupported: the environment offers no speech capability.
	// Callers should disable the feature rather than retry.
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoSpeech:
		return "no speech detected"
	case KindPermissionDenied:
		return "microphone permission denied"
	case KindNetwork:
		return "speech service unreachable"
	case KindUnsupported:
		return "voice search not supported"
	default:
		return "speech error"
	}
}

// Error is a categorized speech failure.
type Error struct {
	Kind ErrorKind
}

func (e *Error) Error() string { return e.Kind.String() }

// ErrAlreadyListening is returned by Start while a session is active.
var ErrAlreadyListening = errors.New("a listening session is already active")

// Recognizer is the environment's speech facility. Listen begins one
// non-interim session and delivers exactly one of onResult or onError,
// possibly from another goroutine. Abort cancels the session; a
// cancelled session must not deliver a result.
type Recognizer interface {
	Listen(onResult func(transcript string), onError func(err *Error))
	Abort()
}

// Adapter serializes access to one Recognizer and forwards the final
// transcript to the caller-supplied callback exactly once per session.
type Adapter struct {
	rec      Recognizer
	onResult func(string)
	onError  func(*Error)

	mu        sync.Mutex
	listening bool
	session   int // invalidates late events from aborted sessions
}

// NewAdapter wires the recognizer to the callbacks. rec may be nil when
// the environment has no speech capability; Start then reports
// KindUnsupported and the caller should not render an active control.
// onError may be nil.
func NewAdapter(rec Recognizer, onResult func(string), onError func(*Error)) (*Adapter, error) {
	if onResult == nil {
		return nil, fmt.Errorf("onResult callback is required")
	}
	return &Adapter{rec: rec, onResult: onResult, onError: onError}, nil
}

// Supported reports whether the environment offers speech at all.
func (a *Adapter) Supported() bool { return a.rec != nil }

// Listening reports whether a session is currently active.
func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Start begins one listening session. A second Start while listening is
// rejected; there is never a second concurrent session.
func (a *Adapter) Start() error {
	a.mu.Lock()
	if a.rec == nil {
		a.mu.Unlock()
		return &Error{Kind: KindUnsupported}
	}
	if a.listening {
		a.mu.Unlock()
		return ErrAlreadyListening
	}
	a.listening = true
	a.session++
	session := a.session
	a.mu.Unlock()

	a.rec.Listen(
		func(transcript string) {
			if a.finish(session) {
				a.onResult(transcript)
			}
		},
		func(err *Error) {
			if a.finish(session) && a.onError != nil {
				a.onError(err)
			}
		},
	)
	return nil
}

// finish transitions back to idle for the given session and reports
// whether this event is the session's single delivery.
func (a *Adapter) finish(session int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.listening || a.session != session {
		return false
	}
	a.listening = false
	return true
}

// Stop cancels the active session, returning the adapter to idle. The
// cancelled session delivers nothing.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if !a.listening {
		a.mu.Unlock()
		return
	}
	a.listening = false
	a.session++
	rec := a.rec
	a.mu.Unlock()

	rec.Abort()
}

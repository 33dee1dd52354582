// Package flow models the screens of the tool as an explicit state
// container. States are values; every transition returns a new State.
package flow

import (
	"errors"
	"fmt"

	"github.com/iwvelando/equity-snapshot/internal/form"
)

// Screen names one screen of the tool.
type Screen string

const (
	ScreenLanding Screen = "landing"
	ScreenForm    Screen = "form"
	ScreenResults Screen = "results"
	ScreenAbout   Screen = "about"
)

// Action names a transition.
type Action string

const (
	ActionStart     Action = "start"
	ActionAnalyze   Action = "analyze"
	ActionBack      Action = "back"
	ActionStartOver Action = "startOver"
	ActionAbout     Action = "about"
	ActionHome      Action = "home"
)

// ErrInvalidTransition indicates an action that is not allowed from the
// current screen.
var ErrInvalidTransition = errors.New("invalid transition")

// State is the full UI state: the current screen, the form input being
// edited and, on the results screen, the normalized submission.
type State struct {
	Screen     Screen           `json:"screen"`
	Input      form.RawInput    `json:"input"`
	Submission *form.Submission `json:"submission,omitempty"`
}

// Initial returns the landing state.
func Initial() State {
	return State{Screen: ScreenLanding}
}

func invalid(from Screen, action Action) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
}

// Start moves from the landing screen to an empty form.
func (s State) Start() (State, error) {
	if s.Screen != ScreenLanding {
		return s, invalid(s.Screen, ActionStart)
	}
	return State{Screen: ScreenForm}, nil
}

// Analyze normalizes raw and moves from the form to the results screen. If
// normalization fails the state stays on the form, keeping raw, and the
// normalizer's error is returned.
func (s State) Analyze(raw form.RawInput, n *form.Normalizer) (State, error) {
	if s.Screen != ScreenForm {
		return s, invalid(s.Screen, ActionAnalyze)
	}
	if n == nil {
		n = form.NewNormalizer()
	}

	sub, err := n.Normalize(raw)
	if err != nil {
		return State{Screen: ScreenForm, Input: raw}, err
	}
	return State{Screen: ScreenResults, Input: raw, Submission: &sub}, nil
}

// Back returns from the results to the form, keeping the entered input.
func (s State) Back() (State, error) {
	if s.Screen != ScreenResults {
		return s, invalid(s.Screen, ActionBack)
	}
	return State{Screen: ScreenForm, Input: s.Input}, nil
}

// StartOver discards everything and returns to the landing screen.
func (s State) StartOver() State {
	return Initial()
}

// About shows the informational screen. Form input is kept so that Home
// does not lose it.
func (s State) About() State {
	return State{Screen: ScreenAbout, Input: s.Input}
}

// Home returns from the informational screen to the landing screen.
func (s State) Home() (State, error) {
	if s.Screen != ScreenAbout {
		return s, invalid(s.Screen, ActionHome)
	}
	return State{Screen: ScreenLanding, Input: s.Input}, nil
}

// Apply dispatches action by name. raw is only used by ActionAnalyze.
func Apply(s State, action Action, raw form.RawInput, n *form.Normalizer) (State, error) {
	switch action {
	case ActionStart:
		return s.Start()
	case ActionAnalyze:
		return s.Analyze(raw, n)
	case ActionBack:
		return s.Back()
	case ActionStartOver:
		return s.StartOver(), nil
	case ActionAbout:
		return s.About(), nil
	case ActionHome:
		return s.Home()
	default:
		return s, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
}

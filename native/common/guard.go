package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module has been administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the supplied module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed pause set, typically sourced from configuration.
type StaticPauses map[string]bool

// NewStaticPauses normalises the supplied module names into a pause set.
func NewStaticPauses(modules []string) StaticPauses {
	set := make(StaticPauses, len(modules))
	for _, module := range modules {
		name := strings.ToLower(strings.TrimSpace(module))
		if name != "" {
			set[name] = true
		}
	}
	return set
}

// IsPaused implements the PauseView interface.
func (s StaticPauses) IsPaused(module string) bool {
	if len(s) == 0 {
		return false
	}
	return s[strings.ToLower(strings.TrimSpace(module))]
}

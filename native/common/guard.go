package common

import "errors"

// ErrModulePaused is returned when the marketplace pause flag blocks a
// state-changing operation.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether operations of a given module are suspended.
// The marketplace config engine implements it for all engines.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view means no
// pause source is wired and the operation proceeds.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

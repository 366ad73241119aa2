package common

import (
	"fmt"

	coreerrors "stakepool/core/errors"
)

var ErrModulePaused = coreerrors.New(coreerrors.KindState, 0xfa10, "module paused")

// PauseView is implemented by accounts that can halt families of operations.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused, naming the first halted module.
func Guard(p PauseView, modules ...string) error {
	if p == nil {
		return nil
	}
	for _, module := range modules {
		if module != "" && p.IsPaused(module) {
			return fmt.Errorf("%w: %s", ErrModulePaused, module)
		}
	}
	return nil
}

package boot

import "secureiap/status"

// FallbackTrigger reports whether the host wants to revert to the previous
// application image (e.g. a button held at boot, or a watchdog-recorded
// crash counter).
type FallbackTrigger interface {
	Init() error
	GetStatus() (raised bool, err error)
}

// NopTrigger is the default FallbackTrigger used when the caller supplies
// none: fallback can never be triggered, but the capability is still
// probeable rather than silently absent.
type NopTrigger struct{}

func (NopTrigger) Init() error                { return nil }
func (NopTrigger) GetStatus() (bool, error) { return false, status.ErrNotImplemented }

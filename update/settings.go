// Package update implements the updater orchestrator: settings validation,
// anti-rollback, output-slot selection, the receive-side state machine, and
// the swap/reset sequencing that hands a new image off to the bootloader.
package update

import (
	"log/slog"

	"secureiap/cipher"
	"secureiap/mailbox"
	"secureiap/memory"
	"secureiap/verify"
)

// BankMode selects the architectural update strategy.
type BankMode uint8

const (
	// DualBank writes a rebuilt plaintext image (header + payload + CRC32
	// trailer) into the inactive flash bank; the updater swaps banks.
	DualBank BankMode = iota
	// SingleBank stages a freshly-built image (header + trailer) in
	// secondary storage; the bootloader migrates it into primary.
	SingleBank
)

// AntiRollbackFunc decides whether a candidate firmware version may
// replace the currently running one. The default policy (see
// DefaultAntiRollback) requires strict improvement.
type AntiRollbackFunc func(current, candidate uint32) bool

// DefaultAntiRollback accepts only strictly newer candidate versions,
// matching the reference implementation's updateAcceptUpdateImageCallback.
func DefaultAntiRollback(current, candidate uint32) bool {
	return candidate > current
}

// ResetFunc performs a system reset. It does not return on a real board; in
// host tests it is a stub that simply records the call.
type ResetFunc func()

// Settings configures one update Session. Memories must already be wired
// with their slots (Primary at index 0, Secondary at index 1); Session.Init
// calls memory.Init on them.
type Settings struct {
	BankMode BankMode
	Primary  *memory.Memory
	Secondary *memory.Memory // nil in a hypothetical memory-less config; required otherwise

	FallbackEnabled bool

	Verify verify.Settings // input image verification

	InputEncrypted  bool
	InputCipherKey  []byte
	OutputEncrypted bool // single-bank only: re-encrypt the staged secondary image
	OutputCipherKey []byte

	AntiRollbackEnabled bool
	CurrentAppVersion   uint32
	AcceptUpdate        AntiRollbackFunc // defaults to DefaultAntiRollback

	// Mailbox is required when SingleBank + OutputEncrypted + !FallbackEnabled,
	// the one scenario where the bootloader has no other way to learn the
	// output cipher key across reset.
	Mailbox *mailbox.Mailbox

	Reset  ResetFunc
	Logger *slog.Logger
}

func (s *Settings) cipherEngines() (in, out *cipher.Engine, err error) {
	if s.InputEncrypted {
		in, err = cipher.Init(s.InputCipherKey)
		if err != nil {
			return nil, nil, err
		}
	}
	if s.OutputEncrypted {
		out, err = cipher.Init(s.OutputCipherKey)
		if err != nil {
			return nil, nil, err
		}
	}
	return in, out, nil
}

func (s *Settings) needsMailbox() bool {
	return s.BankMode == SingleBank && s.OutputEncrypted && !s.FallbackEnabled
}

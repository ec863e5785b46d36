// Package boot implements the bootloader orchestrator: at every reset it
// selects among the current application and candidate secondary images,
// re-verifies the one it intends to run, migrates a single-bank secondary
// image into primary storage if one was selected, and jumps to the
// application entry point. It never returns on the success paths (RunApp,
// after a successful UpdateApp/FallbackApp reset).
package boot

import (
	"log/slog"

	"secureiap/image"
	"secureiap/mailbox"
	"secureiap/memory"
	"secureiap/status"
)

// JumpFunc transfers control to the application at entry. It does not
// return on a real board; host tests supply a stub that records the call.
type JumpFunc func(entry uint32)

// ResetFunc performs a system reset. It does not return on a real board.
type ResetFunc func()

// AntiRollbackFunc decides whether a candidate slot's firmware version may
// be preferred over the current best candidate's. The default policy
// (DefaultAntiRollback) requires strict improvement, matching
// update.DefaultAntiRollback on the updater side.
type AntiRollbackFunc func(current, candidate uint32) bool

// DefaultAntiRollback accepts only strictly newer candidate versions.
func DefaultAntiRollback(current, candidate uint32) bool {
	return candidate > current
}

// Settings configures one Bootloader instance.
type Settings struct {
	Primary   *memory.Memory
	Secondary *memory.Memory // nil if this build has no candidate slots at all

	FallbackEnabled bool

	// AntiRollbackEnabled requires a secondary candidate to also carry a
	// strictly greater DataVers than the current best candidate before it
	// can replace it, on top of the usual ImgIndex comparison
	// (BOOT_ANTI_ROLLBACK_SUPPORT). AcceptUpdate defaults to
	// DefaultAntiRollback when nil.
	AntiRollbackEnabled bool
	AcceptUpdate        AntiRollbackFunc

	// SecondaryEncrypted indicates the secondary image(s) were produced
	// with output encryption and must be decrypted during migration.
	SecondaryEncrypted bool
	// CipherKey is the static migration key. Leave nil when the key must
	// instead be recovered from Mailbox (SecondaryEncrypted &&
	// !FallbackEnabled).
	CipherKey []byte
	Mailbox   *mailbox.Mailbox

	Trigger FallbackTrigger // defaults to NopTrigger if nil
	Jump    JumpFunc
	Reset   ResetFunc
	Logger  *slog.Logger
}

// Bootloader runs the startup selection/verify/jump state machine.
type Bootloader struct {
	s   *Settings
	log *slog.Logger
}

// New validates settings and initializes the underlying memories.
func New(s *Settings) (*Bootloader, error) {
	if s.Primary == nil || len(s.Primary.Slots) == 0 {
		return nil, status.ErrInvalidParameters
	}
	mems := []*memory.Memory{s.Primary}
	if s.Secondary != nil {
		mems = append(mems, s.Secondary)
	}
	if err := memory.Init(mems); err != nil {
		return nil, err
	}
	if s.SecondaryEncrypted && !s.FallbackEnabled && s.Mailbox == nil {
		return nil, status.ErrInvalidParameters
	}
	if s.Trigger == nil {
		s.Trigger = NopTrigger{}
	}
	if s.AcceptUpdate == nil {
		s.AcceptUpdate = DefaultAntiRollback
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Bootloader{s: s, log: log}, nil
}

// candidate pairs a slot with its parsed header, used while scanning for
// the best image to run.
type candidate struct {
	slot   *memory.Slot
	header image.Header
}

func readHeader(s *memory.Slot) (image.Header, error) {
	var buf [image.HeaderSize]byte
	if err := memory.Read(s, 0, buf[:]); err != nil {
		return image.Header{}, err
	}
	return image.Decode(buf[:])
}

// Run executes one full bootloader pass: it never returns if it reaches a
// Jump or Reset call that succeeds; it returns an error only if every path
// (fallback, update, run) fails, which the caller should treat as a
// terminal condition (board-specific recovery, e.g. spin with an LED).
func (b *Bootloader) Run() error {
	if b.s.FallbackEnabled {
		raised, err := b.s.Trigger.GetStatus()
		if err != nil && err != status.ErrNotImplemented {
			b.log.Warn("boot: fallback trigger read failed", "err", err)
		}
		if raised {
			if err := b.fallback(); err != nil {
				b.log.Warn("boot: fallback failed, falling through to run", "err", err)
			} else {
				return nil // Reset was called
			}
		}
	}

	primarySlot, err := memory.GetSlotByCType(b.s.Primary, memory.CTypeApp)
	if err != nil {
		return err
	}
	primaryHeader, primaryErr := readHeader(primarySlot)

	best := candidate{}
	haveBest := false
	if primaryErr == nil {
		best = candidate{slot: primarySlot, header: primaryHeader}
		haveBest = true
	}

	for _, cand := range b.secondaryCandidates() {
		h, err := readHeader(cand)
		if err != nil {
			continue
		}
		if !haveBest || b.preferCandidate(h, best.header) {
			best = candidate{slot: cand, header: h}
			haveBest = true
		}
	}

	if !haveBest {
		return status.ErrNoCandidate
	}

	if best.slot == primarySlot {
		return b.runApp(primarySlot)
	}
	return b.updateApp(best.slot)
}

// preferCandidate reports whether h should replace best as the scan's best
// candidate: a strictly greater ImgIndex, and, under AntiRollbackEnabled,
// also a strictly greater DataVers per AcceptUpdate.
func (b *Bootloader) preferCandidate(h, best image.Header) bool {
	if h.ImgIndex <= best.ImgIndex {
		return false
	}
	if b.s.AntiRollbackEnabled && !b.s.AcceptUpdate(best.DataVers, h.DataVers) {
		return false
	}
	return true
}

func (b *Bootloader) secondaryCandidates() []*memory.Slot {
	if b.s.Secondary == nil {
		return nil
	}
	out := make([]*memory.Slot, 0, 2)
	for i := range b.s.Secondary.Slots {
		out = append(out, &b.s.Secondary.Slots[i])
	}
	return out
}

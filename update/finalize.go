package update

import (
	"secureiap/flashdrv"
	"secureiap/image"
	"secureiap/memory"
	"secureiap/status"
)

// Finalize confirms the just-received image against its trailer, commits
// any scheduled bank swap, and (single-bank + encrypted-output +
// fallback-disabled only) hands the output cipher key to the bootloader
// via the mailbox. It only proceeds from StateValidateApp.
func (sess *Session) Finalize() error {
	if sess.state != StateValidateApp {
		if sess.wroteOutput {
			_ = memory.EraseHeader(sess.outSlot, image.HeaderSize)
		}
		return status.ErrImageNotReady
	}

	if err := sess.verifier.Confirm(sess.checkAcc); err != nil {
		_ = memory.EraseHeader(sess.outSlot, image.HeaderSize)
		sess.state = StateError
		return status.ErrInvalidImageApp
	}

	if err := sess.producer.Finish(); err != nil {
		_ = memory.EraseHeader(sess.outSlot, image.HeaderSize)
		sess.state = StateError
		return err
	}

	if sess.settings.needsMailbox() {
		if err := sess.settings.Mailbox.Set(sess.settings.OutputCipherKey); err != nil {
			return err
		}
	}

	laterSwap := false
	if sess.settings.BankMode == DualBank {
		info := sess.settings.Primary.Info()
		laterSwap = info.Flags&flashdrv.FlagLaterSwap != 0
		if !laterSwap {
			if err := sess.settings.Primary.Driver.SwapBanks(); err != nil {
				return status.ErrMemoryDriverSwapFailed
			}
		}
	}

	sess.log.Info("update: finalize ok", "bankMode", sess.settings.BankMode, "laterSwap", laterSwap)
	sess.state = StateAppReboot
	return nil
}

// Reboot performs the post-verification swap (if it was deferred) and
// resets the system. It only proceeds from StateAppReboot.
func (sess *Session) Reboot() error {
	if sess.state != StateAppReboot {
		return status.ErrInvalidState
	}

	if sess.settings.BankMode == DualBank {
		info := sess.settings.Primary.Info()
		if info.Flags&flashdrv.FlagLaterSwap != 0 {
			if err := sess.settings.Primary.Driver.SwapBanks(); err != nil {
				return status.ErrMemoryDriverSwapFailed
			}
		}
	}

	if sess.settings.Reset != nil {
		sess.settings.Reset()
	}
	return nil
}

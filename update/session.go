package update

import (
	"crypto/rand"
	"log/slog"

	"secureiap/cipher"
	"secureiap/image"
	"secureiap/imageproc"
	"secureiap/memory"
	"secureiap/status"
	"secureiap/verify"
)

// State is the updater's receive-side state machine position.
type State uint8

const (
	StateIdle State = iota
	StateRecvHeader
	StateRecvData
	StateRecvCheck
	StateValidateApp
	StateAppReboot
	StateError
)

// Session drives one update attempt from the first received byte through
// reboot into the new image.
type Session struct {
	settings *Settings
	log      *slog.Logger

	state State

	headerAcc []byte
	header    image.Header

	verifier *verify.Context

	inEng     *cipher.Engine
	ivNeeded  bool
	ivAcc     []byte
	ivDone    bool
	remaining uint32 // plaintext/ciphertext bytes of payload still to receive

	checkAcc []byte

	producer *imageproc.Producer
	outSlot  *memory.Slot
	outEng   *cipher.Engine
	outIV    []byte

	wroteOutput bool
}

// Init validates settings, initializes memories and the output slot's
// writer, and returns a Session positioned at StateRecvHeader.
func Init(s *Settings) (*Session, error) {
	if s.Primary == nil {
		return nil, status.ErrInvalidParameters
	}
	mems := []*memory.Memory{s.Primary}
	if s.Secondary != nil {
		mems = append(mems, s.Secondary)
	}
	if err := memory.Init(mems); err != nil {
		return nil, err
	}
	if s.needsMailbox() && s.Mailbox == nil {
		return nil, status.ErrInvalidParameters
	}
	if s.AcceptUpdate == nil {
		s.AcceptUpdate = DefaultAntiRollback
	}

	outSlot, err := selectOutputSlot(s)
	if err != nil {
		return nil, err
	}
	// outSlot may still hold a previous candidate or backup image; flash
	// can only clear bits, so it must be erased before a new one is staged.
	if err := memory.Erase(outSlot, 0, outSlot.Size); err != nil {
		return nil, err
	}

	inEng, outEng, err := s.cipherEngines()
	if err != nil {
		return nil, err
	}

	vc, err := verify.Init(s.Verify)
	if err != nil {
		return nil, err
	}

	var outIV []byte
	if outEng != nil {
		outIV = make([]byte, cipher.BlockSize)
		if _, err := rand.Read(outIV); err != nil {
			return nil, status.ErrInvalidState
		}
	}
	producer, err := imageproc.New(outSlot, outEng, outIV)
	if err != nil {
		return nil, err
	}

	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Session{
		settings: s,
		log:      log,
		state:    StateRecvHeader,
		verifier: vc,
		inEng:    inEng,
		ivNeeded: s.InputEncrypted,
		producer: producer,
		outSlot:  outSlot,
		outEng:   outEng,
	}, nil
}

// Process feeds the next chunk of bytes from the transport into the
// session. It may be called any number of times with arbitrarily-sized
// chunks.
func (sess *Session) Process(data []byte) error {
	if err := sess.process(data); err != nil {
		if sess.wroteOutput {
			_ = memory.EraseHeader(sess.outSlot, image.HeaderSize)
		}
		sess.state = StateError
		sess.log.Warn("update: session failed", "err", err, "state", sess.state)
		return err
	}
	return nil
}

func (sess *Session) process(data []byte) error {
	for len(data) > 0 {
		switch sess.state {
		case StateRecvHeader:
			data = accumulate(&sess.headerAcc, data, image.HeaderSize)
			if len(sess.headerAcc) < image.HeaderSize {
				return nil
			}
			if err := sess.onHeaderComplete(); err != nil {
				return err
			}

		case StateRecvData:
			if sess.ivNeeded && !sess.ivDone {
				data = accumulate(&sess.ivAcc, data, cipher.BlockSize)
				if len(sess.ivAcc) < cipher.BlockSize {
					return nil
				}
				if err := sess.onIVComplete(); err != nil {
					return err
				}
				continue
			}

			n := uint32(len(data))
			if n > sess.remaining {
				n = sess.remaining
			}
			chunk := append([]byte(nil), data[:n]...)
			data = data[n:]
			sess.remaining -= n

			if err := sess.verifier.Process(chunk); err != nil {
				return err
			}
			if sess.inEng != nil {
				if err := sess.inEng.DecryptData(chunk); err != nil {
					return err
				}
			}
			sess.wroteOutput = true
			if err := sess.producer.Write(chunk); err != nil {
				return err
			}

			if sess.remaining == 0 {
				sess.checkAcc = make([]byte, 0, sess.verifier.CheckDataSize())
				sess.state = StateRecvCheck
			}

		case StateRecvCheck:
			want := sess.verifier.CheckDataSize()
			data = accumulate(&sess.checkAcc, data, want)
			if len(sess.checkAcc) < want {
				return nil
			}
			sess.state = StateValidateApp
			return nil

		default:
			return status.ErrInvalidState
		}
	}
	return nil
}

// accumulate appends a prefix of data to *buf until it reaches target
// bytes, and returns the unconsumed remainder of data. Used to gather
// fixed-size prefixes (header, IV, check data) across arbitrarily-chunked
// Process calls.
func accumulate(buf *[]byte, data []byte, target int) []byte {
	need := target - len(*buf)
	if need > len(data) {
		need = len(data)
	}
	if need > 0 {
		*buf = append(*buf, data[:need]...)
	}
	return data[need:]
}

func (sess *Session) onHeaderComplete() error {
	h, err := image.Decode(sess.headerAcc)
	if err != nil {
		return err
	}
	if h.ImgType != image.TypeApp {
		return status.ErrInvalidHeaderAppType
	}
	if sess.settings.AntiRollbackEnabled {
		if !sess.settings.AcceptUpdate(sess.settings.CurrentAppVersion, h.DataVers) {
			return status.ErrIncorrectAppVersion
		}
	}

	idx, err := nextImageIndex(sess.settings)
	if err != nil {
		return err
	}
	h.ImgIndex = idx

	outDataSize := h.DataSize
	if sess.outEng != nil {
		outDataSize += uint32(cipher.PadLen(int(h.DataSize)))
	}
	outHeader := h
	outHeader.DataSize = outDataSize

	expected := outSizeEstimate(sess.settings, outHeader)
	if expected > sess.outSlot.Size {
		return status.ErrBufferOverflow
	}

	sess.header = h
	sess.remaining = h.DataSize

	if err := sess.verifier.Process(h.CrcBytes()); err != nil {
		return err
	}
	if err := sess.producer.Start(outHeader); err != nil {
		return err
	}
	sess.wroteOutput = true
	sess.state = StateRecvData
	return nil
}

func (sess *Session) onIVComplete() error {
	if err := sess.inEng.SetIV(sess.ivAcc); err != nil {
		return err
	}
	if err := sess.verifier.Process(sess.ivAcc); err != nil {
		return err
	}
	sess.ivDone = true
	return nil
}

// outSizeEstimate computes the output slot footprint an image of the given
// (already re-indexed, already encryption-padded) header will occupy. The
// output image's own trailer is always a 4-byte CRC32 (see imageproc.New),
// independent of whatever scheme protected the input.
func outSizeEstimate(s *Settings, h image.Header) uint32 {
	size := uint32(image.HeaderSize) + h.DataSize + 4
	if s.OutputEncrypted {
		size += cipher.BlockSize // IV
	}
	return size
}

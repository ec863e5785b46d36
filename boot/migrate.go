package boot

import (
	"secureiap/cipher"
	"secureiap/image"
	"secureiap/imageproc"
	"secureiap/memory"
	"secureiap/status"
	"secureiap/verify"
)

const migrateChunkSize = 128

// verifyImage re-verifies the image stored in src: it re-derives the CRC32
// over the header's HeadCrc bytes, the IV (if encrypted is true) and the
// ciphertext/plaintext payload, and compares it against the trailer stored
// immediately after the payload. It returns the parsed header, the offset
// the payload started at (HeaderSize, plus 16 if encrypted), and the IV
// bytes read (nil if not encrypted).
func verifyImage(src *memory.Slot, encrypted bool) (image.Header, uint32, []byte, error) {
	h, err := readHeader(src)
	if err != nil {
		return h, 0, nil, err
	}

	vc, err := verify.Init(verify.Settings{Mode: verify.ModeIntegrity, Integrity: verify.IntegrityCRC32})
	if err != nil {
		return h, 0, nil, err
	}
	if err := vc.Process(h.CrcBytes()); err != nil {
		return h, 0, nil, err
	}

	payloadOff := uint32(image.HeaderSize)
	var iv []byte
	if encrypted {
		iv = make([]byte, cipher.BlockSize)
		if err := memory.Read(src, payloadOff, iv); err != nil {
			return h, 0, nil, err
		}
		if err := vc.Process(iv); err != nil {
			return h, 0, nil, err
		}
		payloadOff += cipher.BlockSize
	}

	remaining := h.DataSize
	offset := payloadOff
	buf := make([]byte, migrateChunkSize)
	for remaining > 0 {
		n := uint32(len(buf))
		if n > remaining {
			n = remaining
		}
		if err := memory.Read(src, offset, buf[:n]); err != nil {
			return h, 0, nil, err
		}
		if err := vc.Process(buf[:n]); err != nil {
			return h, 0, nil, err
		}
		offset += n
		remaining -= n
	}

	trailer := make([]byte, vc.CheckDataSize())
	if err := memory.Read(src, offset, trailer); err != nil {
		return h, 0, nil, err
	}
	if err := vc.Confirm(trailer); err != nil {
		return h, 0, nil, status.ErrInvalidImageApp
	}
	return h, payloadOff, iv, nil
}

// migrate copies the already-verified image at src (payload starting at
// payloadOff) into dst, decrypting with eng if non-nil, and rewrapping it
// as a fresh plaintext header+payload+CRC32 image — so that once dst
// becomes the running application, a future RUN_APP can re-verify it
// without needing any cipher key. iv is the IV verifyImage read from src;
// it is required whenever eng is non-nil.
func migrate(src *memory.Slot, payloadOff uint32, h image.Header, iv []byte, dst *memory.Slot, eng *cipher.Engine) error {
	if eng != nil {
		if err := eng.SetIV(iv); err != nil {
			return err
		}
	}

	// dst previously held the image being replaced; flash can only clear
	// bits, so the whole slot must be erased before writing fresh content.
	if err := memory.Erase(dst, 0, dst.Size); err != nil {
		return err
	}

	prod, err := imageproc.New(dst, nil, nil)
	if err != nil {
		return err
	}
	if err := prod.Start(h); err != nil {
		return err
	}

	remaining := h.DataSize
	offset := payloadOff
	buf := make([]byte, migrateChunkSize)
	for remaining > 0 {
		n := uint32(len(buf))
		if n > remaining {
			n = remaining
		}
		chunk := buf[:n]
		if err := memory.Read(src, offset, chunk); err != nil {
			return err
		}
		if eng != nil {
			if err := eng.DecryptData(chunk); err != nil {
				return err
			}
		}
		if err := prod.Write(chunk); err != nil {
			return err
		}
		offset += n
		remaining -= n
	}
	return prod.Finish()
}

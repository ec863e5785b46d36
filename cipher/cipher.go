// Package cipher implements the AES-CBC streaming engine used to decrypt a
// received image (updater input) and to encrypt a re-built image written to
// secondary storage (updater output, single-bank mode).
package cipher

import (
	stdcipher "crypto/cipher"
	"crypto/aes"

	"secureiap/status"
)

// BlockSize is both the cipher block size and the required IV length.
const BlockSize = aes.BlockSize // 16

// Engine is a preshared-key AES-CBC encrypt/decrypt engine. A single Engine
// is used for one direction (encrypt xor decrypt) of one image at a time;
// SetIV must be called before the first EncryptData/DecryptData call for
// each image.
type Engine struct {
	block stdcipher.Block
	enc   stdcipher.BlockMode
	dec   stdcipher.BlockMode
}

// Init validates key (16, 24 or 32 bytes, selecting AES-128/192/256) and
// prepares the engine. Unlike the reference implementation, which derives
// the key length from strlen(key) and ignores the caller-supplied length,
// this uses the actual byte length of key since Go keys are []byte, not
// NUL-terminated C strings.
func Init(key []byte) (*Engine, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, status.ErrInvalidParameters
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, status.ErrUnsupportedCipAl
	}
	return &Engine{block: block}, nil
}

// SetIV installs a fresh 16-byte initialization vector and resets the
// chaining state for both directions. It MUST be called once per image
// before the first EncryptData/DecryptData call for that image; the
// chaining state then carries across however many EncryptData/DecryptData
// calls it takes to stream the whole payload.
func (e *Engine) SetIV(iv []byte) error {
	if len(iv) != BlockSize {
		return status.ErrInvalidParameters
	}
	e.enc = stdcipher.NewCBCEncrypter(e.block, iv)
	e.dec = stdcipher.NewCBCDecrypter(e.block, iv)
	return nil
}

// EncryptData encrypts data in place, chaining from the previous call since
// SetIV. len(data) MUST be a multiple of BlockSize.
func (e *Engine) EncryptData(data []byte) error {
	if e.enc == nil {
		return status.ErrInvalidState
	}
	if len(data)%BlockSize != 0 {
		return status.ErrInvalidLength
	}
	e.enc.CryptBlocks(data, data)
	return nil
}

// DecryptData decrypts data in place, chaining from the previous call since
// SetIV. len(data) MUST be a multiple of BlockSize.
func (e *Engine) DecryptData(data []byte) error {
	if e.dec == nil {
		return status.ErrInvalidState
	}
	if len(data)%BlockSize != 0 {
		return status.ErrInvalidLength
	}
	e.dec.CryptBlocks(data, data)
	return nil
}

// PadLen returns how many zero bytes must be appended to n bytes of
// plaintext so its length becomes a multiple of BlockSize.
func PadLen(n int) int {
	r := n % BlockSize
	if r == 0 {
		return 0
	}
	return BlockSize - r
}

// Package verify implements the streaming integrity/authentication/signature
// pipeline used both by the updater (checking a received image) and by the
// single-bank output producer (generating a CRC32 trailer for the staged
// secondary image).
package verify

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"hash"
	"hash/crc32"
	"math/big"

	"secureiap/status"
)

// Mode selects which verification family is active.
type Mode uint8

const (
	ModeIntegrity Mode = iota
	ModeAuthentication
	ModeSignature
)

// IntegrityAlgo names an unkeyed digest used in ModeIntegrity.
type IntegrityAlgo uint8

const (
	IntegrityCRC32 IntegrityAlgo = iota
	IntegrityMD5
	IntegritySHA1
	IntegritySHA224
	IntegritySHA256
	IntegritySHA384
	IntegritySHA512
)

// AuthAlgo names the HMAC hash used in ModeAuthentication.
type AuthAlgo uint8

const (
	AuthHMACMD5 AuthAlgo = iota
	AuthHMACSHA256
	AuthHMACSHA512
)

// SignAlgo names the signature scheme used in ModeSignature. The digest is
// always SHA-256.
type SignAlgo uint8

const (
	SignRSAPKCS1v15 SignAlgo = iota
	SignECDSA
)

// Settings configures a Context. Exactly the fields relevant to Mode need
// be populated.
type Settings struct {
	Mode Mode

	Integrity IntegrityAlgo

	Auth    AuthAlgo
	AuthKey []byte

	Sign      SignAlgo
	PublicKey []byte // PEM-encoded
}

// Context is a streaming verifier: Process may be called any number of
// times with successive chunks before Confirm is called once.
type Context struct {
	settings Settings

	hasher   hash.Hash // integrity or signature-digest accumulator
	crcState uint32    // used when Integrity == IntegrityCRC32
	useCrc   bool

	mac hash.Hash // authentication accumulator

	pubKey any // *rsa.PublicKey or *ecdsa.PublicKey, signature mode only
}

// CheckDataSize returns the number of trailer bytes this context expects at
// Confirm time.
func (c *Context) CheckDataSize() int {
	switch c.settings.Mode {
	case ModeIntegrity:
		if c.useCrc {
			return 4
		}
		return c.hasher.Size()
	case ModeAuthentication:
		return c.mac.Size()
	case ModeSignature:
		switch k := c.pubKey.(type) {
		case *rsa.PublicKey:
			return k.Size()
		case *ecdsa.PublicKey:
			scalarSize := (k.Curve.Params().BitSize + 7) / 8
			return 2 * scalarSize
		}
	}
	return 0
}

// Init configures the context for s.
func Init(s Settings) (*Context, error) {
	c := &Context{settings: s}
	switch s.Mode {
	case ModeIntegrity:
		if s.Integrity == IntegrityCRC32 {
			c.useCrc = true
			return c, nil
		}
		h, err := integrityHasher(s.Integrity)
		if err != nil {
			return nil, err
		}
		c.hasher = h
		return c, nil

	case ModeAuthentication:
		if len(s.AuthKey) == 0 {
			return nil, status.ErrInvalidParameters
		}
		h, err := authHasher(s.Auth)
		if err != nil {
			return nil, err
		}
		c.mac = hmac.New(h, s.AuthKey)
		return c, nil

	case ModeSignature:
		block, _ := pem.Decode(s.PublicKey)
		if block == nil {
			return nil, status.ErrInvalidParameters
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, status.ErrInvalidParameters
		}
		switch s.Sign {
		case SignRSAPKCS1v15:
			k, ok := pub.(*rsa.PublicKey)
			if !ok {
				return nil, status.ErrUnsupportedSign
			}
			c.pubKey = k
		case SignECDSA:
			k, ok := pub.(*ecdsa.PublicKey)
			if !ok {
				return nil, status.ErrUnsupportedSign
			}
			c.pubKey = k
		default:
			return nil, status.ErrUnsupportedSign
		}
		c.hasher = sha256.New()
		return c, nil

	default:
		return nil, status.ErrNotImplemented
	}
}

func integrityHasher(a IntegrityAlgo) (hash.Hash, error) {
	switch a {
	case IntegrityMD5:
		return md5.New(), nil
	case IntegritySHA1:
		return sha1.New(), nil
	case IntegritySHA224:
		return sha256.New224(), nil
	case IntegritySHA256:
		return sha256.New(), nil
	case IntegritySHA384:
		return sha512.New384(), nil
	case IntegritySHA512:
		return sha512.New(), nil
	default:
		return nil, status.ErrUnsupportedCipAl
	}
}

func authHasher(a AuthAlgo) (func() hash.Hash, error) {
	switch a {
	case AuthHMACMD5:
		return md5.New, nil
	case AuthHMACSHA256:
		return sha256.New, nil
	case AuthHMACSHA512:
		return sha512.New, nil
	default:
		return nil, status.ErrUnsupportedAuth
	}
}

// Process absorbs another chunk of data into the running digest/MAC.
func (c *Context) Process(data []byte) error {
	switch c.settings.Mode {
	case ModeIntegrity:
		if c.useCrc {
			c.crcState = crc32.Update(c.crcState, crc32.IEEETable, data)
			return nil
		}
		c.hasher.Write(data)
		return nil
	case ModeAuthentication:
		c.mac.Write(data)
		return nil
	case ModeSignature:
		c.hasher.Write(data)
		return nil
	default:
		return status.ErrNotImplemented
	}
}

// Confirm finalizes the running digest/MAC and compares or cryptographically
// verifies it against verifyData, the trailer read from the image. It
// returns status.ErrAborted on any mismatch.
func (c *Context) Confirm(verifyData []byte) error {
	switch c.settings.Mode {
	case ModeIntegrity:
		var got []byte
		if c.useCrc {
			var b [4]byte
			putUint32LE(b[:], c.crcState)
			got = b[:]
		} else {
			got = c.hasher.Sum(nil)
		}
		if !bytes.Equal(got, verifyData) {
			return status.ErrAborted
		}
		return nil

	case ModeAuthentication:
		got := c.mac.Sum(nil)
		if !hmac.Equal(got, verifyData) {
			return status.ErrAborted
		}
		return nil

	case ModeSignature:
		digest := c.hasher.Sum(nil)
		switch k := c.pubKey.(type) {
		case *rsa.PublicKey:
			if err := rsa.VerifyPKCS1v15(k, crypto.SHA256, digest, verifyData); err != nil {
				return status.ErrAborted
			}
			return nil
		case *ecdsa.PublicKey:
			// Fixed-width raw r||s encoding rather than ASN.1 DER: the
			// trailer size must be a function of the key alone so the
			// image format never needs a variable-length trailer field.
			scalarSize := (k.Curve.Params().BitSize + 7) / 8
			if len(verifyData) != 2*scalarSize {
				return status.ErrAborted
			}
			r := new(big.Int).SetBytes(verifyData[:scalarSize])
			s := new(big.Int).SetBytes(verifyData[scalarSize:])
			if !ecdsa.Verify(k, digest, r, s) {
				return status.ErrAborted
			}
			return nil
		}
		return status.ErrNotImplemented

	default:
		return status.ErrNotImplemented
	}
}

// GenerateCheckData finalizes the running digest and returns it. Only valid
// in ModeIntegrity: it produces the CRC32 trailer of every image rebuilt by
// imageproc.Producer (single-bank secondary, dual-bank output, boot migration).
func (c *Context) GenerateCheckData() ([]byte, error) {
	if c.settings.Mode != ModeIntegrity {
		return nil, status.ErrAborted
	}
	if c.useCrc {
		var b [4]byte
		putUint32LE(b[:], c.crcState)
		return b[:], nil
	}
	return c.hasher.Sum(nil), nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// RandReader exists so the package compiles without an explicit crypto/rand
// import warning when only signature verification (never generation) is
// exercised; image building (which does sign) uses crypto/rand directly.
var RandReader = rand.Reader

// Package credentials holds secrets a demo build bakes in via go:embed
// rather than committing to source: the output cipher PSK and the OTA
// console's authentication passphrase.
//
// This package is NOT meant to back a production deployment — a real board
// image provisions these from a secure element or a build-time secret
// store, not a text file sitting next to the Go source.
package credentials

import (
	_ "embed"
	"encoding/hex"
	"strings"

	"secureiap/status"
)

var (
	//go:embed cipher_psk.text
	cipherPSKHex string

	//go:embed console_password.text
	consolePass string
)

// CipherPSK returns the pre-shared key used to encrypt/decrypt secondary
// images, hex-decoded from cipher_psk.text. It is empty, not an error, when
// the embedded file is empty — cmd/imagebuilder treats that as "no demo PSK
// configured" and then requires -k.
func CipherPSK() ([]byte, error) {
	s := strings.TrimSpace(cipherPSKHex)
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, status.ErrInvalidParameters
	}
	return key, nil
}

// ConsolePassword returns the OTA console's authentication passphrase from
// console_password.text.
func ConsolePassword() string {
	return strings.TrimSpace(consolePass)
}

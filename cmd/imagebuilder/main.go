// Command imagebuilder wraps a raw application binary into the on-flash
// image format: a 64-byte header, an optional IV, the payload (VTOR padding
// followed by the binary, encrypted together when -e is given), and a
// trailer whose algorithm is selected on the command line.
package main

import (
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
	"encoding/hex"
	"encoding/pem"
	"flag"
	"fmt"
	"hash"
	"hash/crc32"
	"os"
	"strconv"
	"strings"

	"secureiap/cipher"
	"secureiap/config"
	"secureiap/credentials"
	"secureiap/image"
	"secureiap/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "imagebuilder:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVers = flag.Bool("version", false, "print build version and exit")
		inPath   = flag.String("i", "", "input binary (required)")
		outPath  = flag.String("o", "", "output image path (required)")
		imgIndex = flag.Uint("x", 0, "image index")
		padding  = flag.Uint("p", uint(config.VTOROffset()), "VTOR alignment padding bytes inserted before the binary")
		fwVers   = flag.String("f", "0.0.0", "firmware version, major.minor.patch")
		encAlgo  = flag.String("e", "", "encryption algorithm: aes-cbc")
		encKey   = flag.String("k", "", "encryption key, hex-encoded")
		authAlgo = flag.String("a", "", "authentication algorithm: hmac-md5, hmac-sha256, hmac-sha512")
		authKey  = flag.String("u", "", "authentication key, hex-encoded")
		signAlgo = flag.String("s", "", "signature algorithm: ecdsa-sha256, rsa-sha256")
		signPEM  = flag.String("g", "", "PEM-encoded private key file for signing")
		intAlgo  = flag.String("n", "crc32", "integrity algorithm: crc32, md5, sha1, sha224, sha256, sha384, sha512")
	)
	flag.Parse()

	if *showVers {
		fmt.Println("imagebuilder", version.String())
		return nil
	}

	if *inPath == "" || *outPath == "" {
		return fmt.Errorf("both -i and -o are required")
	}

	payload, err := os.ReadFile(*inPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	major, minor, patch, err := parseSemver(*fwVers)
	if err != nil {
		return fmt.Errorf("parse -f: %w", err)
	}

	body := make([]byte, *padding)
	body = append(body, payload...)

	var iv []byte
	if *encAlgo != "" {
		if *encAlgo != "aes-cbc" {
			return fmt.Errorf("unsupported -e %q", *encAlgo)
		}
		key, err := resolveCipherKey(*encKey)
		if err != nil {
			return fmt.Errorf("-k: %w", err)
		}
		eng, err := cipher.Init(key)
		if err != nil {
			return fmt.Errorf("cipher.Init: %w", err)
		}
		iv = make([]byte, cipher.BlockSize)
		if _, err := rand.Read(iv); err != nil {
			return fmt.Errorf("generate IV: %w", err)
		}
		if err := eng.SetIV(iv); err != nil {
			return fmt.Errorf("SetIV: %w", err)
		}
		if pad := cipher.PadLen(len(body)); pad > 0 {
			body = append(body, make([]byte, pad)...)
		}
		if err := eng.EncryptData(body); err != nil {
			return fmt.Errorf("EncryptData: %w", err)
		}
	}

	h := image.Header{
		HeadVers:    image.Version,
		ImgIndex:    uint32(*imgIndex),
		ImgType:     image.TypeApp,
		DataPadding: uint32(*padding),
		DataSize:    uint32(len(body)),
		DataVers:    image.Semver(major, minor, patch),
	}
	headerBuf := image.Encode(&h)

	checkInput := append(append([]byte{}, h.CrcBytes()...), iv...)
	checkInput = append(checkInput, body...)

	trailer, err := buildTrailer(checkInput, *intAlgo, *authAlgo, *authKey, *signAlgo, *signPEM)
	if err != nil {
		return err
	}

	out := append([]byte{}, headerBuf[:]...)
	out = append(out, iv...)
	out = append(out, body...)
	out = append(out, trailer...)

	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Printf("wrote %s: %d bytes (header %d, padding %d, iv %d, payload %d, trailer %d)\n",
		*outPath, len(out), image.HeaderSize, *padding, len(iv), len(payload), len(trailer))
	return nil
}

func parseSemver(s string) (major, minor, patch uint8, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected major.minor.patch, got %q", s)
	}
	vals := make([]uint8, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid version component %q: %w", p, err)
		}
		vals[i] = uint8(n)
	}
	return vals[0], vals[1], vals[2], nil
}

func decodeKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("key required")
	}
	return hex.DecodeString(hexKey)
}

// resolveCipherKey prefers an explicit -k over the demo PSK baked in via
// credentials.CipherPSK, the same flag-over-embedded-default precedence
// cmd/otapush uses for its own password resolution.
func resolveCipherKey(hexKey string) ([]byte, error) {
	if hexKey != "" {
		return decodeKey(hexKey)
	}
	key, err := credentials.CipherPSK()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("key required (no -k and no demo PSK embedded)")
	}
	return key, nil
}

// buildTrailer computes the trailer bytes appended after the payload,
// following exactly one of the three verification families (integrity,
// authentication, signature) the way verify.Context.Confirm expects to
// check them against.
func buildTrailer(data []byte, intAlgo, authAlgo, authKeyHex, signAlgo, signPEMPath string) ([]byte, error) {
	switch {
	case signAlgo != "":
		return signTrailer(data, signAlgo, signPEMPath)
	case authAlgo != "":
		return authTrailer(data, authAlgo, authKeyHex)
	default:
		return integrityTrailer(data, intAlgo)
	}
}

func integrityTrailer(data []byte, algo string) ([]byte, error) {
	if algo == "crc32" {
		sum := crc32.ChecksumIEEE(data)
		return []byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)}, nil
	}
	h, err := integrityHasher(algo)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

func integrityHasher(algo string) (hash.Hash, error) {
	switch algo {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha224":
		return sha256.New224(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported -n %q", algo)
	}
}

func authTrailer(data []byte, algo, keyHex string) ([]byte, error) {
	key, err := decodeKey(keyHex)
	if err != nil {
		return nil, fmt.Errorf("-u: %w", err)
	}
	var newHash func() hash.Hash
	switch algo {
	case "hmac-md5":
		newHash = md5.New
	case "hmac-sha256":
		newHash = sha256.New
	case "hmac-sha512":
		newHash = sha512.New
	default:
		return nil, fmt.Errorf("unsupported -a %q", algo)
	}
	mac := hmac.New(newHash, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func signTrailer(data []byte, algo, pemPath string) ([]byte, error) {
	if pemPath == "" {
		return nil, fmt.Errorf("-g is required for -s %q", algo)
	}
	pemBytes, err := os.ReadFile(pemPath)
	if err != nil {
		return nil, fmt.Errorf("read -g: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("-g is not a valid PEM file")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	digest := sha256.Sum256(data)
	switch algo {
	case "rsa-sha256":
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("-g does not hold an RSA key")
		}
		return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	case "ecdsa-sha256":
		priv, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("-g does not hold an ECDSA key")
		}
		r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
		if err != nil {
			return nil, err
		}
		scalarSize := (priv.Curve.Params().BitSize + 7) / 8
		out := make([]byte, 2*scalarSize)
		r.FillBytes(out[:scalarSize])
		s.FillBytes(out[scalarSize:])
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported -s %q", algo)
	}
}

package verify

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func runRoundTrip(t *testing.T, settings Settings, payload []byte) {
	t.Helper()
	vc, err := Init(settings)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := vc.Process(payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	check, err := vc.GenerateCheckData()
	if err != nil {
		// Signature/authentication modes don't support GenerateCheckData;
		// the caller supplies its own trailer in that case.
		return
	}
	if len(check) != vc.CheckDataSize() {
		t.Fatalf("GenerateCheckData len = %d, want %d", len(check), vc.CheckDataSize())
	}

	vc2, err := Init(settings)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := vc2.Process(payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := vc2.Confirm(check); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

func TestIntegrityModes(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	algos := []IntegrityAlgo{IntegrityCRC32, IntegrityMD5, IntegritySHA1, IntegritySHA224, IntegritySHA256, IntegritySHA384, IntegritySHA512}
	for _, a := range algos {
		runRoundTrip(t, Settings{Mode: ModeIntegrity, Integrity: a}, payload)
	}
}

func TestIntegrityConfirmRejectsTamperedPayload(t *testing.T) {
	settings := Settings{Mode: ModeIntegrity, Integrity: IntegritySHA256}
	vc, err := Init(settings)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	payload := []byte("original payload")
	if err := vc.Process(payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	check, err := vc.GenerateCheckData()
	if err != nil {
		t.Fatalf("GenerateCheckData: %v", err)
	}

	vc2, _ := Init(settings)
	if err := vc2.Process([]byte("tampered payload")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := vc2.Confirm(check); err == nil {
		t.Fatal("expected Confirm to reject a tampered payload")
	}
}

func TestAuthenticationModes(t *testing.T) {
	payload := []byte("firmware bytes")
	key := []byte("0123456789abcdef")
	algos := []AuthAlgo{AuthHMACMD5, AuthHMACSHA256, AuthHMACSHA512}
	for _, a := range algos {
		runRoundTrip(t, Settings{Mode: ModeAuthentication, Auth: a, AuthKey: key}, payload)
	}
}

func TestAuthenticationRequiresKey(t *testing.T) {
	if _, err := Init(Settings{Mode: ModeAuthentication, Auth: AuthHMACSHA256}); err == nil {
		t.Fatal("expected Init to reject a missing auth key")
	}
}

func pemEncodePublic(t *testing.T, pub any) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func TestSignatureRSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	settings := Settings{Mode: ModeSignature, Sign: SignRSAPKCS1v15, PublicKey: pemEncodePublic(t, &priv.PublicKey)}

	vc, err := Init(settings)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	payload := []byte("application image bytes")
	if err := vc.Process(payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}
	if err := vc.Confirm(sig); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

func TestSignatureECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	settings := Settings{Mode: ModeSignature, Sign: SignECDSA, PublicKey: pemEncodePublic(t, &priv.PublicKey)}

	vc, err := Init(settings)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	payload := []byte("application image bytes")
	if err := vc.Process(payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	digest := sha256.Sum256(payload)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("ecdsa.Sign: %v", err)
	}

	scalarSize := (priv.Curve.Params().BitSize + 7) / 8
	trailer := make([]byte, 2*scalarSize)
	rb := r.Bytes()
	sb := s.Bytes()
	copy(trailer[scalarSize-len(rb):scalarSize], rb)
	copy(trailer[2*scalarSize-len(sb):], sb)

	if got := vc.CheckDataSize(); got != len(trailer) {
		t.Fatalf("CheckDataSize = %d, want %d", got, len(trailer))
	}
	if err := vc.Confirm(trailer); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

func TestSignatureECDSARejectsWrongLengthTrailer(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	settings := Settings{Mode: ModeSignature, Sign: SignECDSA, PublicKey: pemEncodePublic(t, &priv.PublicKey)}
	vc, err := Init(settings)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := vc.Process([]byte("data")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := vc.Confirm(make([]byte, 3)); err == nil {
		t.Fatal("expected Confirm to reject a malformed-length trailer")
	}
}

func TestSignatureRejectsMalformedPEM(t *testing.T) {
	if _, err := Init(Settings{Mode: ModeSignature, Sign: SignRSAPKCS1v15, PublicKey: []byte("not pem")}); err == nil {
		t.Fatal("expected Init to reject a malformed PEM key")
	}
}

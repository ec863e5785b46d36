package cipher

import "testing"

func key16() []byte { return make([]byte, 16) }

func TestInitRejectsBadKeyLength(t *testing.T) {
	for _, n := range []int{0, 1, 15, 17, 33} {
		if _, err := Init(make([]byte, n)); err == nil {
			t.Errorf("Init accepted a %d-byte key", n)
		}
	}
	for _, n := range []int{16, 24, 32} {
		if _, err := Init(make([]byte, n)); err != nil {
			t.Errorf("Init rejected a %d-byte key: %v", n, err)
		}
	}
}

func TestEncryptDecryptRoundTripAcrossMultipleCalls(t *testing.T) {
	key := key16()
	iv := make([]byte, BlockSize)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range iv {
		iv[i] = byte(0x10 + i)
	}

	enc, err := Init(key)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.SetIV(iv); err != nil {
		t.Fatalf("SetIV: %v", err)
	}

	plain := make([]byte, BlockSize*4)
	for i := range plain {
		plain[i] = byte(i * 3)
	}
	orig := append([]byte(nil), plain...)

	// Encrypt in uneven chunks to exercise CBC chaining across calls.
	chunks := [][]byte{plain[0:16], plain[16:48], plain[48:64]}
	for _, c := range chunks {
		if err := enc.EncryptData(c); err != nil {
			t.Fatalf("EncryptData: %v", err)
		}
	}

	dec, err := Init(key)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := dec.SetIV(iv); err != nil {
		t.Fatalf("SetIV: %v", err)
	}
	if err := dec.DecryptData(plain); err != nil {
		t.Fatalf("DecryptData: %v", err)
	}

	for i := range plain {
		if plain[i] != orig[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, plain[i], orig[i])
		}
	}
}

func TestCryptBeforeSetIVFails(t *testing.T) {
	enc, err := Init(key16())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.EncryptData(make([]byte, BlockSize)); err == nil {
		t.Fatal("expected EncryptData to fail before SetIV")
	}
}

func TestCryptRejectsUnalignedLength(t *testing.T) {
	enc, err := Init(key16())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.SetIV(make([]byte, BlockSize)); err != nil {
		t.Fatalf("SetIV: %v", err)
	}
	if err := enc.EncryptData(make([]byte, BlockSize+1)); err == nil {
		t.Fatal("expected EncryptData to reject an unaligned length")
	}
}

func TestPadLen(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 0},
		{1, 15},
		{15, 1},
		{16, 0},
		{17, 15},
		{31, 1},
		{32, 0},
	}
	for _, tc := range tests {
		if got := PadLen(tc.n); got != tc.want {
			t.Errorf("PadLen(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

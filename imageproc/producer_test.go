package imageproc

import (
	"testing"

	"secureiap/cipher"
	"secureiap/flashsim"
	"secureiap/image"
	"secureiap/memory"
)

func newSlot(t *testing.T) *memory.Slot {
	t.Helper()
	drv := flashsim.New(0x08000000, 0x4000, 0x1000, 1)
	m := &memory.Memory{Role: memory.RolePrimary, Kind: memory.KindFlash, Driver: drv, Slots: []memory.Slot{
		{Type: memory.CTypeUpdate, Kind: memory.SlotDirect, Addr: 0x08000000, Size: 0x4000},
	}}
	if err := memory.Init([]*memory.Memory{m}); err != nil {
		t.Fatalf("memory.Init: %v", err)
	}
	return &m.Slots[0]
}

func TestProducerPlaintextRoundTrip(t *testing.T) {
	slot := newSlot(t)
	p, err := New(slot, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h := image.Header{HeadVers: image.Version, ImgIndex: 3, ImgType: image.TypeApp, DataSize: 37}
	if err := p.Start(h); err != nil {
		t.Fatalf("Start: %v", err)
	}
	payload := []byte("0123456789012345678901234567890123456")
	if len(payload) != 37 {
		t.Fatalf("test payload length = %d, want 37", len(payload))
	}
	if err := p.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var headerBuf [image.HeaderSize]byte
	if err := memory.Read(slot, 0, headerBuf[:]); err != nil {
		t.Fatalf("Read header: %v", err)
	}
	got, err := image.Decode(headerBuf[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ImgIndex != 3 || got.DataSize != 37 {
		t.Errorf("decoded header = %+v", got)
	}

	gotPayload := make([]byte, 37)
	if err := memory.Read(slot, image.HeaderSize, gotPayload); err != nil {
		t.Fatalf("Read payload: %v", err)
	}
	if string(gotPayload) != string(payload) {
		t.Errorf("payload = %q, want %q", gotPayload, payload)
	}
}

func TestProducerEncryptedRoundTrip(t *testing.T) {
	slot := newSlot(t)
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	eng, err := cipher.Init(key)
	if err != nil {
		t.Fatalf("cipher.Init: %v", err)
	}
	iv := make([]byte, cipher.BlockSize)
	for i := range iv {
		iv[i] = byte(0x20 + i)
	}

	p, err := New(slot, eng, iv)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := image.Header{HeadVers: image.Version, ImgIndex: 1, ImgType: image.TypeApp, DataSize: 40}
	if err := p.Start(h); err != nil {
		t.Fatalf("Start: %v", err)
	}
	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := p.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ivBuf := make([]byte, cipher.BlockSize)
	if err := memory.Read(slot, image.HeaderSize, ivBuf); err != nil {
		t.Fatalf("Read IV: %v", err)
	}
	if string(ivBuf) != string(iv) {
		t.Error("stored IV does not match the one passed to New")
	}

	cipherText := make([]byte, cipher.PadLen(40)+40)
	if err := memory.Read(slot, image.HeaderSize+cipher.BlockSize, cipherText); err != nil {
		t.Fatalf("Read ciphertext: %v", err)
	}

	dec, err := cipher.Init(key)
	if err != nil {
		t.Fatalf("cipher.Init: %v", err)
	}
	if err := dec.SetIV(iv); err != nil {
		t.Fatalf("SetIV: %v", err)
	}
	if err := dec.DecryptData(cipherText); err != nil {
		t.Fatalf("DecryptData: %v", err)
	}
	if string(cipherText[:40]) != string(payload) {
		t.Errorf("decrypted payload = %v, want %v", cipherText[:40], payload)
	}
}

func TestProducerRejectsWriteBeforeStart(t *testing.T) {
	slot := newSlot(t)
	p, err := New(slot, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Write([]byte("x")); err == nil {
		t.Fatal("expected Write before Start to fail")
	}
}

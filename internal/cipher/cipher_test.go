package cipher

import (
	"bytes"
	"testing"
)

func TestKeyScheduleDeterministic(t *testing.T) {
	vk1, ak1 := GenerateKeys(0x0123456789ABCDEF)
	vk2, ak2 := GenerateKeys(0x0123456789ABCDEF)
	if vk1 != vk2 || ak1 != ak2 {
		t.Fatalf("key schedule not deterministic for same seed")
	}

	vk3, ak3 := GenerateKeys(0x0123456789ABCDEE)
	if vk1 == vk3 {
		t.Fatalf("changing seed byte did not change video key")
	}
	if ak1 == ak3 {
		t.Fatalf("changing seed byte did not change audio key")
	}
}

func TestVideoKeyUpperHalfIsInverse(t *testing.T) {
	vk, _ := GenerateKeys(42)
	for i := 0; i < 0x20; i++ {
		if vk[0x20+i] != vk[i]^0xFF {
			t.Fatalf("video key byte %d: upper half is not bitwise inverse of lower", i)
		}
	}
}

func TestAudioKeyOddBytesAreURUC(t *testing.T) {
	_, ak := GenerateKeys(99)
	want := "URUC"
	for i := 0; i < 0x20; i++ {
		if i%2 != 0 {
			if ak[i] != want[(i>>1)%4] {
				t.Fatalf("audio key byte %d = %q, want %q", i, ak[i], want[(i>>1)%4])
			}
		}
	}
}

func TestVideoCipherRoundTrip(t *testing.T) {
	vk, _ := GenerateKeys(0x0123456789ABCDEF)

	plain := make([]byte, 0x280)
	for i := range plain {
		plain[i] = byte(i)
	}

	ct, err := EncryptVideoPacket(plain, vk[:])
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.Equal(ct[:0x40], plain[:0x40]) {
		t.Fatalf("first 0x40 bytes of ciphertext must equal plaintext prefix")
	}

	pt, err := DecryptVideoPacket(ct, vk[:])
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, plain) {
		t.Fatalf("round trip mismatch:\n got %x\nwant %x", pt, plain)
	}
}

func TestVideoCipherPassesThroughShortPackets(t *testing.T) {
	vk, _ := GenerateKeys(7)
	short := make([]byte, 0x23F) // one byte under the 0x240 threshold
	for i := range short {
		short[i] = byte(i * 3)
	}

	enc, err := EncryptVideoPacket(short, vk[:])
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.Equal(enc, short) {
		t.Fatalf("short packet should pass through encrypt unchanged")
	}

	dec, err := DecryptVideoPacket(short, vk[:])
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, short) {
		t.Fatalf("short packet should pass through decrypt unchanged")
	}
}

func TestAudioCipherInvolution(t *testing.T) {
	_, ak := GenerateKeys(0xFEEDFACECAFEBEEF)

	for _, size := range []int{0, 0x10, 0x140, 0x141, 0x400} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 7)
		}

		once, err := CryptAudioPacket(data, ak[:])
		if err != nil {
			t.Fatalf("crypt: %v", err)
		}
		twice, err := CryptAudioPacket(once, ak[:])
		if err != nil {
			t.Fatalf("crypt: %v", err)
		}
		if !bytes.Equal(twice, data) {
			t.Fatalf("size %d: audio cipher not involutive", size)
		}
	}
}

func TestBadKeyLength(t *testing.T) {
	if _, err := DecryptVideoPacket(make([]byte, 0x300), make([]byte, 0x10)); err != ErrBadKeyLength {
		t.Fatalf("expected ErrBadKeyLength, got %v", err)
	}
	if _, err := CryptAudioPacket(make([]byte, 0x200), make([]byte, 0x10)); err != ErrBadKeyLength {
		t.Fatalf("expected ErrBadKeyLength, got %v", err)
	}
}

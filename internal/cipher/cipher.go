// Package cipher implements the keyed byte-permutation/XOR obfuscation
// applied to USM video and audio payloads. This is not cryptography: it
// provides no security, only a deterministic, reversible transform that
// must round-trip exactly against the reference CRIWARE tooling.
package cipher

import "errors"

// ErrBadKeyLength is returned when a key passed to a transform is shorter
// than the size that transform requires.
var ErrBadKeyLength = errors.New("cipher: bad key length")

const (
	videoKeySize = 0x40
	audioKeySize = 0x20
)

var audioConst = [4]byte{'U', 'R', 'U', 'C'}

// GenerateKeys derives the 64-byte video key and 32-byte audio key from a
// single 64-bit seed. The mixing recipe below is byte-exact with the
// reference implementation's generate_keys: a fixed sequence of modulo-256
// additions, XORs, and backward references into already-computed bytes of
// the 32-byte intermediate key k.
func GenerateKeys(seed uint64) (videoKey [64]byte, audioKey [32]byte) {
	var cipherSeed [8]byte
	for i := 0; i < 8; i++ {
		cipherSeed[i] = byte(seed >> (uint(i) * 8))
	}

	var k [0x20]byte
	k[0x00] = cipherSeed[0]
	k[0x01] = cipherSeed[1]
	k[0x02] = cipherSeed[2]
	k[0x03] = cipherSeed[3] - 0x34
	k[0x04] = cipherSeed[4] + 0xF9
	k[0x05] = cipherSeed[5] ^ 0x13
	k[0x06] = cipherSeed[6] + 0x61
	k[0x07] = k[0x00] ^ 0xFF
	k[0x08] = k[0x01] + k[0x02]
	k[0x09] = k[0x01] - k[0x07]
	k[0x0A] = k[0x02] ^ 0xFF
	k[0x0B] = k[0x01] ^ 0xFF
	k[0x0C] = k[0x0B] + k[0x09]
	k[0x0D] = k[0x08] - k[0x03]
	k[0x0E] = k[0x0D] ^ 0xFF
	k[0x0F] = k[0x0A] - k[0x0B]
	k[0x10] = k[0x08] - k[0x0F]
	k[0x11] = k[0x10] ^ k[0x07]
	k[0x12] = k[0x0F] ^ 0xFF
	k[0x13] = k[0x03] ^ 0x10
	k[0x14] = k[0x04] - 0x32
	k[0x15] = k[0x05] + 0xED
	k[0x16] = k[0x06] ^ 0xF3
	k[0x17] = k[0x13] - k[0x0F]
	k[0x18] = k[0x15] + k[0x07]
	k[0x19] = 0x21 - k[0x13]
	k[0x1A] = k[0x14] ^ k[0x17]
	k[0x1B] = k[0x16] + k[0x16]
	k[0x1C] = k[0x17] + 0x44
	k[0x1D] = k[0x03] + k[0x04]
	k[0x1E] = k[0x05] - k[0x16]
	k[0x1F] = k[0x1D] ^ k[0x13]

	for i := 0; i < 0x20; i++ {
		videoKey[i] = k[i]
		videoKey[0x20+i] = k[i] ^ 0xFF
		if i%2 != 0 {
			audioKey[i] = audioConst[(i>>1)%4]
		} else {
			audioKey[i] = k[i] ^ 0xFF
		}
	}

	return videoKey, audioKey
}

// DecryptVideoPacket reverses EncryptVideoPacket. Only the region beyond
// the first 0x40 bytes is touched, and only when that region is at least
// 0x200 bytes (packet length >= 0x240); shorter packets pass through
// unchanged. The tail pass runs before the head pass on decrypt.
func DecryptVideoPacket(packet []byte, videoKey []byte) ([]byte, error) {
	if len(videoKey) < videoKeySize {
		return nil, ErrBadKeyLength
	}

	data := append([]byte(nil), packet...)
	encryptedSize := len(data) - 0x40
	if encryptedSize >= 0x200 {
		rolling := append([]byte(nil), videoKey[:videoKeySize]...)

		for i := 0x100; i < encryptedSize; i++ {
			data[0x40+i] ^= rolling[0x20+(i%0x20)]
			rolling[0x20+(i%0x20)] = data[0x40+i] ^ videoKey[0x20+(i%0x20)]
		}

		for i := 0; i < 0x100; i++ {
			rolling[i%0x20] ^= data[0x140+i]
			data[0x40+i] ^= rolling[i%0x20]
		}
	}

	return data, nil
}

// EncryptVideoPacket obfuscates a video packet; see DecryptVideoPacket.
// The head pass runs before the tail pass on encrypt, and the tail pass
// reads the plaintext byte before XORing it so the rolling state update
// uses plaintext rather than ciphertext.
func EncryptVideoPacket(packet []byte, videoKey []byte) ([]byte, error) {
	if len(videoKey) < videoKeySize {
		return nil, ErrBadKeyLength
	}

	data := append([]byte(nil), packet...)
	if len(data) >= 0x240 {
		encryptedSize := len(data) - 0x40
		rolling := append([]byte(nil), videoKey[:videoKeySize]...)

		for i := 0; i < 0x100; i++ {
			rolling[i%0x20] ^= data[0x140+i]
			data[0x40+i] ^= rolling[i%0x20]
		}

		for i := 0x100; i < encryptedSize; i++ {
			plainByte := data[0x40+i]
			data[0x40+i] ^= rolling[0x20+(i%0x20)]
			rolling[0x20+(i%0x20)] = plainByte ^ videoKey[0x20+(i%0x20)]
		}
	}

	return data, nil
}

// CryptAudioPacket is its own inverse: packets longer than 0x140 bytes have
// every byte from 0x140 onward XORed with audioKey[i%0x20].
func CryptAudioPacket(packet []byte, audioKey []byte) ([]byte, error) {
	if len(audioKey) < audioKeySize {
		return nil, ErrBadKeyLength
	}

	data := append([]byte(nil), packet...)
	if len(data) > 0x140 {
		for i := 0x140; i < len(data); i++ {
			data[i] ^= audioKey[i%0x20]
		}
	}
	return data, nil
}

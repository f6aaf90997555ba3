package ipc

import (
	"bytes"
	"crypto/cipher"
	"crypto/des" //nolint:gosec // the host protocol mandates 3DES-CBC
	"crypto/sha1" //nolint:gosec // PBKDF2-SHA1 is the protocol's key derivation
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters fixed by the host protocol.
const (
	KeySalt       = "Adobe Photoshop"
	KeyIterations = 1000
	KeyLength     = 24
)

// protocolIV is the constant CBC initialization vector of the wire protocol.
// This is a closed versioned protocol, not a general-purpose secure channel.
var protocolIV = [des.BlockSize]byte{0x00, 0x00, 0x00, 0x00, 0x5d, 0x26, 0x00, 0x00}

// ErrCiphertext is returned when a payload cannot be decrypted.
var ErrCiphertext = errors.New("invalid ciphertext")

// Cipher encrypts and decrypts frame payloads with 3DES-CBC and PKCS#7
// padding. It is stateless once keyed and safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

// NewCipher derives the payload key from password.
func NewCipher(password string) (*Cipher, error) {
	if password == "" {
		return nil, errors.New("password must be non-empty")
	}
	key := pbkdf2.Key([]byte(password), []byte(KeySalt), KeyIterations, KeyLength, sha1.New)
	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt returns the padded ciphertext of plain.
func (c *Cipher) Encrypt(plain []byte) []byte {
	bs := c.block.BlockSize()
	pad := bs - len(plain)%bs
	buf := make([]byte, len(plain)+pad)
	copy(buf, plain)
	copy(buf[len(plain):], bytes.Repeat([]byte{byte(pad)}, pad))

	iv := protocolIV
	cipher.NewCBCEncrypter(c.block, iv[:]).CryptBlocks(buf, buf)
	return buf
}

// Decrypt returns the plaintext of ct with padding removed.
func (c *Cipher) Decrypt(ct []byte) ([]byte, error) {
	bs := c.block.BlockSize()
	if len(ct) == 0 || len(ct)%bs != 0 {
		return nil, fmt.Errorf("%w: length %d is not a positive multiple of %d", ErrCiphertext, len(ct), bs)
	}
	buf := make([]byte, len(ct))
	iv := protocolIV
	cipher.NewCBCDecrypter(c.block, iv[:]).CryptBlocks(buf, ct)

	pad := int(buf[len(buf)-1])
	if pad == 0 || pad > bs {
		return nil, fmt.Errorf("%w: bad padding", ErrCiphertext)
	}
	for _, b := range buf[len(buf)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("%w: bad padding", ErrCiphertext)
		}
	}
	return buf[:len(buf)-pad], nil
}

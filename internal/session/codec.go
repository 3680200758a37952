package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"aidanwoods.dev/go-paseto"
)

var ErrUndecodable = errors.New("session: undecodable payload")

// Codec seals and opens session payloads.
type Codec interface {
	Seal(plain []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

const pasetoDataClaim = "data"

// PasetoCodec issues v4.local tokens with a key that never leaves the server.
type PasetoCodec struct {
	key paseto.V4SymmetricKey
}

func NewPasetoCodec(hexKey string) (*PasetoCodec, error) {
	if hexKey == "" {
		return &PasetoCodec{key: paseto.NewV4SymmetricKey()}, nil
	}
	key, err := paseto.V4SymmetricKeyFromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	return &PasetoCodec{key: key}, nil
}

func (c *PasetoCodec) Seal(plain []byte) (string, error) {
	tok := paseto.NewToken()
	tok.SetString(pasetoDataClaim, string(plain))
	return tok.V4Encrypt(c.key, nil), nil
}

func (c *PasetoCodec) Open(sealed string) ([]byte, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	tok, err := parser.ParseV4Local(c.key, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	data, err := tok.GetString(pasetoDataClaim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return []byte(data), nil
}

// LegacyCodec reads entries written by the old storefront: OpenSSL "Salted__"
// AES-256-CBC with an MD5 EVP_BytesToKey derivation. Not a security boundary.
type LegacyCodec struct {
	Passphrase string
}

var saltedPrefix = []byte("Salted__")

func (c LegacyCodec) Seal(plain []byte) (string, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key, iv := evpBytesToKey([]byte(c.Passphrase), salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	buf := make([]byte, 0, len(saltedPrefix)+len(salt)+len(out))
	buf = append(buf, saltedPrefix...)
	buf = append(buf, salt...)
	buf = append(buf, out...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

func (c LegacyCodec) Open(sealed string) ([]byte, error) {
	if c.Passphrase == "" {
		return nil, ErrUndecodable
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if len(raw) < 16+aes.BlockSize || !bytes.Equal(raw[:8], saltedPrefix) {
		return nil, ErrUndecodable
	}
	salt, body := raw[8:16], raw[16:]
	if len(body)%aes.BlockSize != 0 {
		return nil, ErrUndecodable
	}
	key, iv := evpBytesToKey([]byte(c.Passphrase), salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	return pkcs7Unpad(out, aes.BlockSize)
}

// ChainCodec seals with the first codec and opens with the first one that succeeds.
type ChainCodec []Codec

func (c ChainCodec) Seal(plain []byte) (string, error) {
	if len(c) == 0 {
		return "", errors.New("session: no codec configured")
	}
	return c[0].Seal(plain)
}

func (c ChainCodec) Open(sealed string) ([]byte, error) {
	for _, codec := range c {
		if b, err := codec.Open(sealed); err == nil {
			return b, nil
		}
	}
	return nil, ErrUndecodable
}

func evpBytesToKey(pass, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var derived, prev []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(pass)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrUndecodable
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrUndecodable
	}
	for _, x := range b[len(b)-n:] {
		if int(x) != n {
			return nil, ErrUndecodable
		}
	}
	return b[:len(b)-n], nil
}

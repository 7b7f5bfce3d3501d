// Package secretbox cifra los client secrets de los apps guardados en YAML.
// Formato: base64(nonce)|base64(ciphertext), AES-256-GCM.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	// EnvMasterKey contiene la clave maestra (base64 o hex de 32 bytes).
	EnvMasterKey = "SECRETBOX_MASTER_KEY"

	keyLen    = 32
	nonceSize = 12
	sep       = "|"
)

var (
	ErrNoKey       = errors.New("secretbox: " + EnvMasterKey + " not set (generate one with: openssl rand -base64 32)")
	ErrInvalidKey  = errors.New("secretbox: key must decode to 32 bytes")
	ErrMalformed   = errors.New("secretbox: expected base64(nonce)|base64(ciphertext)")
	ErrDecryptAuth = errors.New("secretbox: authentication failed")
)

// Box cifra y descifra con una clave fija. Seguro para uso concurrente.
type Box struct {
	aead cipher.AEAD
}

// New crea un Box a partir de una clave cruda de 32 bytes.
func New(key []byte) (*Box, error) {
	if len(key) != keyLen {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretbox: gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// ParseKey acepta base64 (con o sin padding) o hex.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrNoKey
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == keyLen {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) == keyLen {
		return b, nil
	}
	if len(s) == 2*keyLen {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, ErrInvalidKey
}

// Seal cifra plain.
func (b *Box) Seal(plain string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open descifra un valor producido por Seal.
func (b *Box) Open(sealed string) (string, error) {
	nonceB64, ctB64, ok := strings.Cut(strings.TrimSpace(sealed), sep)
	if !ok {
		return "", ErrMalformed
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonce) != nonceSize {
		return "", ErrMalformed
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", ErrMalformed
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecryptAuth
	}
	return string(pt), nil
}

// ---- Box por defecto (desde env) ----

var (
	defaultOnce sync.Once
	defaultBox  *Box
	defaultErr  error
)

// Default retorna el Box cargado desde SECRETBOX_MASTER_KEY (una sola vez).
func Default() (*Box, error) {
	defaultOnce.Do(func() {
		var key []byte
		key, defaultErr = ParseKey(os.Getenv(EnvMasterKey))
		if defaultErr != nil {
			return
		}
		defaultBox, defaultErr = New(key)
	})
	return defaultBox, defaultErr
}

// Ready indica si la clave por defecto está disponible.
func Ready() bool {
	_, err := Default()
	return err == nil
}

// Encrypt cifra con el Box por defecto.
func Encrypt(plain string) (string, error) {
	b, err := Default()
	if err != nil {
		return "", err
	}
	return b.Seal(plain)
}

// Decrypt descifra con el Box por defecto.
func Decrypt(sealed string) (string, error) {
	b, err := Default()
	if err != nil {
		return "", err
	}
	return b.Open(sealed)
}

// UnsafeResetForTests descarta el Box por defecto para releer el env.
func UnsafeResetForTests() {
	defaultOnce = sync.Once{}
	defaultBox = nil
	defaultErr = nil
}

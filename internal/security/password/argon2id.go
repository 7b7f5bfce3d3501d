// Package password hashea con argon2id en formato PHC.
//
// Las cuentas federadas nunca se autentican por password, pero el schema local
// exige uno: se guarda el hash de un token aleatorio (ver RandomHash).
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	tokens "github.com/dropDatabas3/federation/internal/security/token"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
	SaltLen     int
}

var (
	// Default para passwords elegidos por humanos.
	Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32, SaltLen: 16}

	// Federated es más liviano: el input ya tiene 256 bits de entropía.
	Federated = Params{Memory: 19 * 1024, Time: 2, Parallelism: 1, KeyLen: 32, SaltLen: 16}
)

var ErrEmpty = errors.New("password: empty input")

const phcFormat = "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"

// Hash devuelve $argon2id$v=19$m=...,t=...,p=...$<salt>$<dk>.
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	if p.SaltLen <= 0 {
		p.SaltLen = 16
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf(phcFormat, argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify compara plain contra un PHC producido por Hash.
func Verify(plain, phc string) bool {
	var v, m, t, par int
	var saltB64, dkB64 string
	// Sscanf no corta %s en '$': se reemplaza por espacios.
	n, _ := fmt.Sscanf(dollarsToSpaces(phc), " argon2id v=%d m=%d,t=%d,p=%d %s %s", &v, &m, &t, &par, &saltB64, &dkB64)
	if n != 6 || v != argon2.Version {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(dkB64)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(plain), salt, uint32(t), uint32(m), uint8(par), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// RandomHash genera un token opaco de nBytes y retorna sólo su hash.
// El token en claro se descarta.
func RandomHash(p Params, nBytes int) (string, error) {
	tok, err := tokens.GenerateOpaqueToken(nBytes)
	if err != nil {
		return "", fmt.Errorf("password: random token: %w", err)
	}
	return Hash(p, tok)
}

func dollarsToSpaces(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == '$' {
			b[i] = ' '
		}
	}
	return string(b)
}

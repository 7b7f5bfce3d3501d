package password

import (
	"errors"
	"strings"
	"testing"
)

var cheap = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16, SaltLen: 8}

func TestHashVerify(t *testing.T) {
	phc, err := Hash(cheap, "correct horse")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected PHC: %s", phc)
	}

	if !Verify("correct horse", phc) {
		t.Fatalf("Verify rejected the right password")
	}
	if Verify("battery staple", phc) {
		t.Fatalf("Verify accepted a wrong password")
	}
	if Verify("correct horse", "not-a-phc") {
		t.Fatalf("Verify accepted a malformed hash")
	}
}

func TestHash_Empty(t *testing.T) {
	if _, err := Hash(cheap, ""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Hash(\"\") err = %v, want ErrEmpty", err)
	}
}

func TestRandomHash_Unique(t *testing.T) {
	a, err := RandomHash(cheap, 32)
	if err != nil {
		t.Fatalf("RandomHash err: %v", err)
	}
	b, err := RandomHash(cheap, 32)
	if err != nil {
		t.Fatalf("RandomHash err: %v", err)
	}
	if a == b {
		t.Fatalf("two random hashes are equal")
	}
	if !strings.HasPrefix(a, "$argon2id$") {
		t.Fatalf("unexpected PHC: %s", a)
	}
}

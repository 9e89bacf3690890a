package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if !Verify("correct horse battery staple", hash) {
		t.Fatal("correct password should verify")
	}
	if Verify("wrong password", hash) {
		t.Fatal("wrong password should not verify")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, err := Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password should differ")
	}
	if !Verify("secret123", a) || !Verify("secret123", b) {
		t.Fatal("both hashes should verify")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=1,p=4$short",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=abc,t=1,p=4$c2FsdA$aGFzaA",
	}
	for _, encoded := range cases {
		if Verify("whatever", encoded) {
			t.Errorf("Verify accepted malformed hash %q", encoded)
		}
	}
}

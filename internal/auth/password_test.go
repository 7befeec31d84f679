package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// cheap parameters keep the suite fast; the format is identical.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := NewPasswordHasher(testParams)
	digest, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected digest format %q", digest)
	}
	if strings.Contains(digest, "secret123") {
		t.Fatal("digest contains plaintext")
	}
	if !h.Verify("secret123", digest) {
		t.Fatal("verify failed for correct password")
	}
	if h.Verify("secret124", digest) {
		t.Fatal("verify succeeded for wrong password")
	}
}

func TestPasswordHasherSalts(t *testing.T) {
	h := NewPasswordHasher(testParams)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatal("two digests of the same password must differ")
	}
}

func TestPasswordHasherMalformed(t *testing.T) {
	h := NewPasswordHasher(testParams)
	for _, digest := range []string{
		"",
		"plain",
		"$argon2id$",
		"$argon2id$v=19$m=1024,t=1,p=1$$",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
		"$2a$10$short",
		"5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8",
	} {
		if h.Verify("password", digest) {
			t.Fatalf("malformed digest %q verified", digest)
		}
	}
}

func TestDecodeArgon2RejectsExcessiveCost(t *testing.T) {
	for _, digest := range []string{
		"$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=1024,t=4294967295,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=1024,t=1,p=255$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$" + strings.Repeat("A", 400),
	} {
		if _, _, _, err := decodeArgon2(digest); err == nil {
			t.Fatalf("digest %.60q accepted", digest)
		}
		if NewPasswordHasher(testParams).Verify("password", digest) {
			t.Fatalf("digest %.60q verified", digest)
		}
	}
}

func TestDecodeArgon2AcceptsDefaultCost(t *testing.T) {
	digest := "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5"
	p, _, _, err := decodeArgon2(digest)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Memory != DefaultArgon2Params.Memory || p.Iterations != DefaultArgon2Params.Iterations {
		t.Fatalf("params = %+v", p)
	}
}

func TestPasswordHasherAcceptsBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := NewPasswordHasher(testParams)
	if !h.Verify("legacy-pass", string(legacy)) {
		t.Fatal("bcrypt digest should verify")
	}
	if h.Verify("other", string(legacy)) {
		t.Fatal("bcrypt digest verified wrong password")
	}
}

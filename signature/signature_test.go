package signature_test

import (
	"strings"
	"testing"

	"github.com/xraph/courier/signature"
)

func TestSignFormat(t *testing.T) {
	sig := signature.Sign([]byte(`{"a":1}`), "secret")

	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("expected sha256= prefix, got %q", sig)
	}
	// sha256= plus 64 hex characters.
	if len(sig) != len("sha256=")+64 {
		t.Fatalf("unexpected signature length: %d", len(sig))
	}
}

func TestSignDeterministic(t *testing.T) {
	payload := []byte(`{"event":"invoice.created","amount":100}`)

	a := signature.Sign(payload, "secret")
	b := signature.Sign(payload, "secret")
	if a != b {
		t.Fatalf("same payload and secret produced different signatures: %q vs %q", a, b)
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"event":"invoice.created","amount":100}`)
	secret := "whsec_test_secret"
	valid := signature.Sign(payload, secret)

	tests := []struct {
		name     string
		payload  []byte
		secret   string
		supplied string
		want     bool
	}{
		{"valid", payload, secret, valid, true},
		{"wrong secret", payload, "other_secret", valid, false},
		{"empty supplied", payload, secret, "", false},
		{"missing prefix", payload, secret, strings.TrimPrefix(valid, "sha256="), false},
		{"garbage", payload, secret, "sha256=deadbeef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signature.Verify(tt.payload, tt.secret, tt.supplied); got != tt.want {
				t.Fatalf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifySingleByteMutation(t *testing.T) {
	payload := []byte(`{"event":"invoice.created"}`)
	secret := "whsec_test_secret"
	sig := signature.Sign(payload, secret)

	mutated := append([]byte(nil), payload...)
	mutated[0] ^= 0x01

	if signature.Verify(mutated, secret, sig) {
		t.Fatal("signature verified against a mutated payload")
	}
}

func TestGenerateSecret(t *testing.T) {
	a := signature.GenerateSecret()
	b := signature.GenerateSecret()

	if !strings.HasPrefix(a, "whsec_") {
		t.Fatalf("expected whsec_ prefix, got %q", a)
	}
	if a == b {
		t.Fatal("two generated secrets are identical")
	}
}

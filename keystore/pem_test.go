package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
)

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	encoded, err := EncodePrivateKeyPEM(key)
	if err != nil {
		t.Fatalf("EncodePrivateKeyPEM failed: %v", err)
	}
	if !strings.Contains(encoded, "BEGIN PRIVATE KEY") {
		t.Error("Expected PKCS#8 block type")
	}

	parsed, err := ParsePrivateKeyPEM(encoded)
	if err != nil {
		t.Fatalf("ParsePrivateKeyPEM failed: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("Round-tripped key does not match")
	}
}

func TestParsePrivateKeyPEMLegacyFormat(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	legacy := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	parsed, err := ParsePrivateKeyPEM(string(legacy))
	if err != nil {
		t.Fatalf("ParsePrivateKeyPEM failed on PKCS#1 input: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("Parsed legacy key does not match")
	}
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	encoded, err := EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		t.Fatalf("EncodePublicKeyPEM failed: %v", err)
	}
	if !strings.Contains(encoded, "BEGIN PUBLIC KEY") {
		t.Error("Expected PKIX block type")
	}

	parsed, err := ParsePublicKeyPEM(encoded)
	if err != nil {
		t.Fatalf("ParsePublicKeyPEM failed: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("Round-tripped public key does not match")
	}
}

func TestParsePEMRejectsGarbage(t *testing.T) {
	if _, err := ParsePrivateKeyPEM("not a pem"); err == nil {
		t.Error("Expected error for non-PEM private key input")
	}
	if _, err := ParsePublicKeyPEM("not a pem"); err == nil {
		t.Error("Expected error for non-PEM public key input")
	}
}

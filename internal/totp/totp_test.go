package totp

import (
	"testing"
	"time"
)

func TestGenerateSecret_ProducesUsableSecret(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if secret == "" {
		t.Fatal("expected a non-empty secret")
	}
	if _, err := decodeSecret(secret); err != nil {
		t.Fatalf("generated secret does not decode: %v", err)
	}
}

func TestVerify_AcceptsCurrentCode(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	secretBytes, err := decodeSecret(secret)
	if err != nil {
		t.Fatalf("decodeSecret: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	code := computeCode(secretBytes, uint64(now.Unix())/uint64(DefaultStep/time.Second))

	if !Verify(code, secret, now) {
		t.Fatal("expected the current code to verify")
	}
}

func TestVerify_RejectsWrongCode(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if Verify("000000", secret, time.Now()) {
		t.Fatal("expected an arbitrary code to fail most of the time")
	}
}

func TestVerify_ToleratesOneStepOfClockDrift(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	secretBytes, err := decodeSecret(secret)
	if err != nil {
		t.Fatalf("decodeSecret: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	step := int64(DefaultStep / time.Second)
	prevCounter := now.Unix()/step - 1
	code := computeCode(secretBytes, uint64(prevCounter))

	if !Verify(code, secret, now) {
		t.Fatal("expected a code from the previous step to still verify")
	}
}

func TestVerify_RejectsMalformedCodeLength(t *testing.T) {
	secret, _ := GenerateSecret()
	if Verify("123", secret, time.Now()) {
		t.Fatal("expected a short code to be rejected")
	}
}

func TestProvisionURI_ContainsExpectedParams(t *testing.T) {
	uri := ProvisionURI("alice", "vaultcraft", "JBSWY3DPEHPK3PXP")
	want := "otpauth://totp/vaultcraft:alice?secret=JBSWY3DPEHPK3PXP&issuer=vaultcraft&algorithm=SHA1&digits=6&period=30"
	if uri != want {
		t.Fatalf("got %s want %s", uri, want)
	}
}

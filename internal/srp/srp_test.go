package srp

import (
	"errors"
	"testing"

	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

func TestSRP_HappyPath(t *testing.T) {
	password := []byte("correct horse battery staple")

	reg, err := GenerateRegistration(password)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ce, err := GenerateClientEphemeral()
	if err != nil {
		t.Fatalf("client ephemeral: %v", err)
	}
	se, err := GenerateServerEphemeral(reg.VerifierHex)
	if err != nil {
		t.Fatalf("server ephemeral: %v", err)
	}

	clientRes, err := ClientComputeSession(ce, reg.Salt, password, se.BHex())
	if err != nil {
		t.Fatalf("client session: %v", err)
	}

	serverRes, err := ServerVerifySession(se, reg.VerifierHex, ce.AHex(), clientRes.M1)
	if err != nil {
		t.Fatalf("server verify: %v", err)
	}

	if clientRes.M1 != serverRes.M1 {
		t.Fatalf("M1 mismatch: client %s server %s", clientRes.M1, serverRes.M1)
	}
	if clientRes.M2 != serverRes.M2 {
		t.Fatalf("M2 mismatch: client %s server %s", clientRes.M2, serverRes.M2)
	}
	if string(clientRes.K) != string(serverRes.K) {
		t.Fatalf("K mismatch between client and server")
	}

	ce.Zero()
	se.Zero()
}

func TestSRP_WrongPasswordFailsProof(t *testing.T) {
	reg, err := GenerateRegistration([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ce, err := GenerateClientEphemeral()
	if err != nil {
		t.Fatalf("client ephemeral: %v", err)
	}
	se, err := GenerateServerEphemeral(reg.VerifierHex)
	if err != nil {
		t.Fatalf("server ephemeral: %v", err)
	}

	clientRes, err := ClientComputeSession(ce, reg.Salt, []byte("hunter2"), se.BHex())
	if err != nil {
		t.Fatalf("client session: %v", err)
	}

	_, err = ServerVerifySession(se, reg.VerifierHex, ce.AHex(), clientRes.M1)
	if err == nil {
		t.Fatal("expected AuthFail for wrong password, got nil error")
	}
	var verr *vaulterrors.Error
	if !errors.As(err, &verr) || verr.Kind != vaulterrors.AuthFail {
		t.Fatalf("expected AuthFail, got %v", err)
	}
}

func TestSRP_TamperedM1Rejected(t *testing.T) {
	reg, err := GenerateRegistration([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ce, err := GenerateClientEphemeral()
	if err != nil {
		t.Fatalf("client ephemeral: %v", err)
	}
	se, err := GenerateServerEphemeral(reg.VerifierHex)
	if err != nil {
		t.Fatalf("server ephemeral: %v", err)
	}
	clientRes, err := ClientComputeSession(ce, reg.Salt, []byte("correct horse battery staple"), se.BHex())
	if err != nil {
		t.Fatalf("client session: %v", err)
	}

	tampered := flipHexNibble(clientRes.M1)
	if _, err := ServerVerifySession(se, reg.VerifierHex, ce.AHex(), tampered); err == nil {
		t.Fatal("expected tampered M1 to be rejected")
	}
}

func TestSRP_ZeroAIsRejected(t *testing.T) {
	reg, err := GenerateRegistration([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	se, err := GenerateServerEphemeral(reg.VerifierHex)
	if err != nil {
		t.Fatalf("server ephemeral: %v", err)
	}
	if _, err := ServerVerifySession(se, reg.VerifierHex, "0", "deadbeef"); err == nil {
		t.Fatal("expected rejection of A = 0")
	}
}

func flipHexNibble(s string) string {
	b := []byte(s)
	if len(b) == 0 {
		return s
	}
	if b[0] == 'f' {
		b[0] = '0'
	} else {
		b[0] = 'f'
	}
	return string(b)
}

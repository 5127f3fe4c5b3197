package password

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("secret-password")
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if hash == "secret-password" {
		t.Fatal("hash equals plaintext")
	}
	if !Verify("secret-password", hash) {
		t.Error("Verify() rejected the correct password")
	}
	if Verify("wrong-password", hash) {
		t.Error("Verify() accepted a wrong password")
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	a := HashToken("refresh-token-abc")
	b := HashToken("refresh-token-abc")
	if a != b {
		t.Error("HashToken() is not deterministic")
	}
	if a == HashToken("refresh-token-xyz") {
		t.Error("different tokens hashed to the same value")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestValidatePassword(t *testing.T) {
	if ValidatePassword("short") {
		t.Error("ValidatePassword() accepted a 5-char password")
	}
	if !ValidatePassword("longenough") {
		t.Error("ValidatePassword() rejected a valid password")
	}
}

package jwt

import (
	"errors"
	"testing"
)

const (
	testSecret  = "test-secret"
	otherSecret = "other-secret"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(7, 42, "driver1", "DRIVER", testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	claims, err := ValidateAccessToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error: %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("UserID = %d, want 7", claims.UserID)
	}
	if claims.SubjectID != 42 {
		t.Errorf("SubjectID = %d, want 42", claims.SubjectID)
	}
	if claims.Username != "driver1" || claims.Role != "DRIVER" {
		t.Errorf("identity = %s/%s, want driver1/DRIVER", claims.Username, claims.Role)
	}
}

func TestAccessToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(7, 42, "driver1", "DRIVER", testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	_, err = ValidateAccessToken(token, otherSecret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ValidateAccessToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestAccessToken_Expired(t *testing.T) {
	token, err := GenerateAccessToken(7, 42, "driver1", "DRIVER", testSecret, -1)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	_, err = ValidateAccessToken(token, testSecret)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("ValidateAccessToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	token, err := GenerateRefreshToken(7, "token-id-1", testSecret, 7)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error: %v", err)
	}

	claims, err := ValidateRefreshToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateRefreshToken() error: %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("UserID = %d, want 7", claims.UserID)
	}
	if claims.TokenID != "token-id-1" {
		t.Errorf("TokenID = %q, want token-id-1", claims.TokenID)
	}
}

func TestRefreshToken_NotValidAsAccessSecret(t *testing.T) {
	token, err := GenerateRefreshToken(7, "token-id-1", testSecret, 7)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error: %v", err)
	}

	_, err = ValidateRefreshToken(token, otherSecret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ValidateRefreshToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	_, err := ValidateAccessToken("not.a.jwt", testSecret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ValidateAccessToken() error = %v, want ErrTokenInvalid", err)
	}
}

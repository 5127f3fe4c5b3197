package services

import (
	"context"
	"errors"
	"testing"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/adapters/persistence/repositories"
	"fuelink/internal/config"
	"fuelink/internal/core/domain"
)

func newAuthService(t *testing.T, f *fixture) *AuthService {
	t.Helper()

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-access-secret",
			RefreshSecret:    "test-refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
	}
	userRepo := repositories.NewUserRepository(f.db)
	tokenRepo := repositories.NewRefreshTokenRepository(f.db)
	return NewAuthService(userRepo, tokenRepo, f.partyRepo, cfg)
}

func driverRegisterInput(f *fixture) *RegisterInput {
	return &RegisterInput{
		Username:  "driver1",
		Email:     "driver1@test.io",
		Password:  "password123",
		Role:      string(domain.RoleDriver),
		SubjectID: f.driver.ID,
	}
}

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)

	resp, err := auth.Register(context.Background(), driverRegisterInput(f))
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if resp.User.Username != "driver1" {
		t.Errorf("Username = %q, want driver1", resp.User.Username)
	}
	if resp.User.SubjectID != f.driver.ID {
		t.Errorf("SubjectID = %d, want %d", resp.User.SubjectID, f.driver.ID)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("tokens not issued on register")
	}
}

func TestAuthService_Register_UnknownSubject(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)

	input := driverRegisterInput(f)
	input.SubjectID = 999

	_, err := auth.Register(context.Background(), input)
	if !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("Register() error = %v, want ErrSubjectNotFound", err)
	}
}

func TestAuthService_Register_AdminNeedsNoSubject(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)

	_, err := auth.Register(context.Background(), &RegisterInput{
		Username: "admin1",
		Email:    "admin1@test.io",
		Password: "password123",
		Role:     string(domain.RoleAdmin),
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
}

func TestAuthService_Register_UnknownRole(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)

	_, err := auth.Register(context.Background(), &RegisterInput{
		Username: "x",
		Email:    "x@test.io",
		Password: "password123",
		Role:     "SUPERUSER",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Register() error = %v, want ErrInvalidInput", err)
	}
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)
	ctx := context.Background()

	if _, err := auth.Register(ctx, driverRegisterInput(f)); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	dup := driverRegisterInput(f)
	dup.Email = "other@test.io"
	_, err := auth.Register(ctx, dup)
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("Register() error = %v, want ErrUserAlreadyExists", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)
	ctx := context.Background()

	if _, err := auth.Register(ctx, driverRegisterInput(f)); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	resp, err := auth.Login(ctx, &LoginInput{Username: "driver1", Password: "password123"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("no access token on login")
	}

	// The access token carries the subject binding
	claims, err := auth.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error: %v", err)
	}
	if claims.SubjectID != f.driver.ID {
		t.Errorf("claims SubjectID = %d, want %d", claims.SubjectID, f.driver.ID)
	}
	if claims.Role != string(domain.RoleDriver) {
		t.Errorf("claims Role = %q, want DRIVER", claims.Role)
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)
	ctx := context.Background()

	if _, err := auth.Register(ctx, driverRegisterInput(f)); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	_, err := auth.Login(ctx, &LoginInput{Username: "driver1", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)
	ctx := context.Background()

	resp, err := auth.Register(ctx, driverRegisterInput(f))
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	f.db.Model(&models.User{}).Where("id = ?", resp.User.ID).Update("is_active", false)

	_, err = auth.Login(ctx, &LoginInput{Username: "driver1", Password: "password123"})
	if !errors.Is(err, ErrUserInactive) {
		t.Fatalf("Login() error = %v, want ErrUserInactive", err)
	}
}

func TestAuthService_RefreshToken_Rotation(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)
	ctx := context.Background()

	registered, err := auth.Register(ctx, driverRegisterInput(f))
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	refreshed, err := auth.RefreshToken(ctx, registered.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken() error: %v", err)
	}
	if refreshed.RefreshToken == registered.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The old token is revoked after rotation
	_, err = auth.RefreshToken(ctx, registered.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("RefreshToken() with rotated token error = %v, want ErrTokenRevoked", err)
	}
}

func TestAuthService_RefreshToken_Garbage(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)

	_, err := auth.RefreshToken(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("RefreshToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)
	ctx := context.Background()

	registered, err := auth.Register(ctx, driverRegisterInput(f))
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := auth.Logout(ctx, registered.RefreshToken); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}

	_, err = auth.RefreshToken(ctx, registered.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("RefreshToken() after logout error = %v, want ErrTokenRevoked", err)
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	f := newFixture(t)
	auth := newAuthService(t, f)
	ctx := context.Background()

	registered, err := auth.Register(ctx, driverRegisterInput(f))
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	loggedIn, err := auth.Login(ctx, &LoginInput{Username: "driver1", Password: "password123"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	if err := auth.LogoutAll(ctx, registered.User.ID); err != nil {
		t.Fatalf("LogoutAll() error: %v", err)
	}

	for _, token := range []string{registered.RefreshToken, loggedIn.RefreshToken} {
		if _, err := auth.RefreshToken(ctx, token); !errors.Is(err, ErrTokenRevoked) {
			t.Errorf("RefreshToken() after logout-all error = %v, want ErrTokenRevoked", err)
		}
	}
}

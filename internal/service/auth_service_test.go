package service

import (
	"context"
	"errors"
	"testing"

	"github.com/musictutor-next/internal/cache"
	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAuthService(f *serviceFixture) *AuthService {
	cfg := &config.Config{
		JWT:      config.JWTConfig{SecretKey: "unit-test-secret", ExpireHours: 2},
		Security: config.SecurityConfig{PasswordMinLength: 8},
	}
	return NewAuthService(cfg, f.users)
}

func TestRegisterAndLogin(t *testing.T) {
	f := setupServiceFixture(t)
	auth := newTestAuthService(f)
	ctx := context.Background()

	user, token, _, err := auth.Register(ctx, RegisterInput{Email: " Alice@Example.com ", Password: "piano2024"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "alice@example.com" || user.Role != constants.RoleStudent || user.DisplayName != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if token == "" {
		t.Fatalf("register should issue a token")
	}
	if _, _, _, err := auth.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "piano2024"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	logged, token, _, err := auth.Login(ctx, "ALICE@example.com", "piano2024")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if logged.LastLoginAt == nil {
		t.Fatalf("login should record last login time")
	}
	state, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if state.UserID != user.ID || state.Role != constants.RoleStudent {
		t.Fatalf("unexpected auth state: %+v", state)
	}
	if _, _, _, err := auth.Login(ctx, "alice@example.com", "wrong-pass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, _, err := auth.Login(ctx, "nobody@example.com", "piano2024"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := setupServiceFixture(t)
	auth := newTestAuthService(f)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "piano2024"}, ErrInvalidEmail},
		{"short password", RegisterInput{Email: "a@example.com", Password: "p1"}, ErrWeakPassword},
		{"letters only", RegisterInput{Email: "a@example.com", Password: "pianopiano"}, ErrWeakPassword},
		{"admin self register", RegisterInput{Email: "a@example.com", Password: "piano2024", Role: constants.RoleAdmin}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, _, err := auth.Register(ctx, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	teacher, _, _, err := auth.Register(ctx, RegisterInput{Email: "t@example.com", Password: "violin2024", Role: "Teacher", DisplayName: "Ms. T"})
	if err != nil {
		t.Fatalf("teacher register failed: %v", err)
	}
	if teacher.Role != constants.RoleTeacher || teacher.DisplayName != "Ms. T" {
		t.Fatalf("unexpected teacher: %+v", teacher)
	}
}

func TestAuthenticateRejectsRevokedAndDisabled(t *testing.T) {
	f := setupServiceFixture(t)
	auth := newTestAuthService(f)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	cache.Use(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() {
		_ = cache.Close()
	})

	user, token, _, err := auth.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "drums2024"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := auth.Authenticate(ctx, token); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if _, hit, _ := cache.GetUserAuthState(ctx, user.ID); !hit {
		t.Fatalf("auth state should be cached after authenticate")
	}

	if err := auth.RevokeTokens(ctx, user.ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := auth.Authenticate(ctx, token); !errors.Is(err, ErrTokenRevoked) || !IsAuthError(err) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	_, fresh, _, err := auth.Login(ctx, "bob@example.com", "drums2024")
	if err != nil {
		t.Fatalf("login after revoke failed: %v", err)
	}
	if _, err := auth.Authenticate(ctx, fresh); err != nil {
		t.Fatalf("fresh token should be accepted: %v", err)
	}

	if err := f.db.Model(user).UpdateColumn("status", constants.UserStatusDisabled).Error; err != nil {
		t.Fatalf("disable user failed: %v", err)
	}
	if err := cache.DelUserAuthState(ctx, user.ID); err != nil {
		t.Fatalf("drop cached state failed: %v", err)
	}
	if _, err := auth.Authenticate(ctx, fresh); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("expected ErrUserDisabled, got %v", err)
	}
	if _, _, _, err := auth.Login(ctx, "bob@example.com", "drums2024"); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("disabled user must not log in, got %v", err)
	}
}

func TestParseJWTRejectsForeignSignature(t *testing.T) {
	f := setupServiceFixture(t)
	auth := newTestAuthService(f)
	user := f.createUser(t, "carol@example.com", constants.RoleTeacher)

	token, _, err := auth.GenerateJWT(user)
	if err != nil {
		t.Fatalf("generate jwt failed: %v", err)
	}
	other := NewAuthService(&config.Config{JWT: config.JWTConfig{SecretKey: "another-secret"}}, f.users)
	if _, err := other.ParseJWT(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	claims, err := auth.ParseJWT(token)
	if err != nil {
		t.Fatalf("parse jwt failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != constants.RoleTeacher {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := auth.ParseJWT("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

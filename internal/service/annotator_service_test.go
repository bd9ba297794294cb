package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
)

func TestAnnotatorBulkCreateReportsAddedExistingAndInvalid(t *testing.T) {
	store, _ := setupTestStore(t)
	svc := NewAnnotatorService(store.Annotators(), testValidator(), testLogger())
	ctx := context.Background()

	_, created, err := svc.Create(ctx, dto.AnnotatorCreateRequest{Email: " Known@Example.com "})
	require.NoError(t, err)
	require.True(t, created)

	resp, err := svc.BulkCreate(ctx, dto.AnnotatorBulkCreateRequest{Emails: "known@example.com; new@example.com\nnot-an-email | NEW@example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Added)
	require.Equal(t, 1, resp.Existing)
	require.Equal(t, []string{"known@example.com", "new@example.com"}, resp.Emails)
	require.Equal(t, []string{"not-an-email"}, resp.Invalid)

	listed, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	_, err = svc.GetByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, ErrAnnotatorNotFound)
}

func newAuthFixture(t *testing.T, cfg AuthConfig) (AuthService, repository.Store) {
	t.Helper()
	store, _ := setupTestStore(t)
	annotators := NewAnnotatorService(store.Annotators(), testValidator(), testLogger())
	return NewAuthService(annotators, cfg, testValidator(), testLogger()), store
}

func parseClaims(t *testing.T, token, secret string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return claims
}

func TestAnnotatorLoginIssuesToken(t *testing.T) {
	svc, store := newAuthFixture(t, AuthConfig{Secret: "secret", TokenTTL: time.Hour})
	id := addAnnotator(t, store, "a@example.com")

	resp, err := svc.AnnotatorLogin(context.Background(), dto.AnnotatorLoginRequest{Email: "A@Example.com"})
	require.NoError(t, err)
	require.Equal(t, RoleAnnotator, resp.Role)
	require.NotNil(t, resp.Annotator)

	claims := parseClaims(t, resp.Token, "secret")
	require.Equal(t, strconv.FormatUint(uint64(id), 10), claims["sub"])
	require.Equal(t, "a@example.com", claims["email"])
	require.Equal(t, RoleAnnotator, claims["role"])

	_, err = svc.AnnotatorLogin(context.Background(), dto.AnnotatorLoginRequest{Email: "ghost@example.com"})
	require.ErrorIs(t, err, ErrAnnotatorNotFound)
}

func TestAdminLoginChecksConfiguredCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t, AuthConfig{Secret: "secret", AdminEmail: "Admin@Local.test", AdminPassword: "hunter2"})

	resp, err := svc.AdminLogin(context.Background(), dto.AdminLoginRequest{Email: "admin@local.test", Password: "hunter2"})
	require.NoError(t, err)
	claims := parseClaims(t, resp.Token, "secret")
	require.Equal(t, RoleAdmin, claims["role"])
	require.Equal(t, "0", claims["sub"])

	_, err = svc.AdminLogin(context.Background(), dto.AdminLoginRequest{Email: "admin@local.test", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLoginDisabledWithoutPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, AuthConfig{Secret: "secret", AdminEmail: "admin@local.test"})
	_, err := svc.AdminLogin(context.Background(), dto.AdminLoginRequest{Email: "admin@local.test", Password: "anything"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

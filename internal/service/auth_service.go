package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
)

// ErrInvalidCredentials is returned when admin credentials do not match.
var ErrInvalidCredentials = errors.New("invalid admin credentials")

// AuthConfig holds token signing settings and the admin account.
type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

// AuthService issues bearer tokens that carry the caller's identity.
type AuthService interface {
	AnnotatorLogin(ctx context.Context, req dto.AnnotatorLoginRequest) (dto.TokenResponse, error)
	AdminLogin(ctx context.Context, req dto.AdminLoginRequest) (dto.TokenResponse, error)
}

type authService struct {
	annotators AnnotatorService
	cfg        AuthConfig
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(annotators AnnotatorService, cfg AuthConfig, validate *validator.Validate, logger zerolog.Logger) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	return &authService{
		annotators: annotators,
		cfg:        cfg,
		validator:  validate,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
	}
}

// AnnotatorLogin signs a token for a known annotator email.
func (s *authService) AnnotatorLogin(ctx context.Context, req dto.AnnotatorLoginRequest) (dto.TokenResponse, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return dto.TokenResponse{}, err
	}

	annotator, err := s.annotators.GetByEmail(ctx, req.Email)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	resp, err := s.sign(annotator.ID, annotator.Email, RoleAnnotator)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	resp.Annotator = &annotator
	return resp, nil
}

// AdminLogin signs an admin token when the credentials match the configured account.
func (s *authService) AdminLogin(ctx context.Context, req dto.AdminLoginRequest) (dto.TokenResponse, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return dto.TokenResponse{}, err
	}

	if s.cfg.AdminPassword == "" {
		return dto.TokenResponse{}, ErrInvalidCredentials
	}
	emailMatch := req.Email == models.NormalizeEmail(s.cfg.AdminEmail)
	passwordMatch := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.AdminPassword)) == 1
	if !emailMatch || !passwordMatch {
		s.logger.Warn().Msg("admin login rejected")
		return dto.TokenResponse{}, ErrInvalidCredentials
	}

	return s.sign(0, req.Email, RoleAdmin)
}

func (s *authService) sign(id uint, email, role string) (dto.TokenResponse, error) {
	if strings.TrimSpace(s.cfg.Secret) == "" {
		return dto.TokenResponse{}, errors.New("jwt secret is not configured")
	}

	issued := s.now().UTC()
	expires := issued.Add(s.cfg.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(id), 10),
		"email": email,
		"role":  role,
		"iat":   issued.Unix(),
		"exp":   expires.Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return dto.TokenResponse{}, err
	}
	return dto.TokenResponse{Token: signed, Role: role, ExpiresAt: expires}, nil
}

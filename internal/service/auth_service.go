package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/model"
	"focusbot/internal/repository"
)

const maxMemberNameLength = 32

type AuthService struct {
	memberRepo   *repository.MemberRepository
	jwtSecret    []byte
	tokenTTL     time.Duration
	adminMembers map[string]struct{}
}

func NewAuthService(
	memberRepo *repository.MemberRepository,
	jwtSecret string,
	tokenTTL time.Duration,
	adminMembers []string,
) *AuthService {
	admins := make(map[string]struct{}, len(adminMembers))
	for _, name := range adminMembers {
		admins[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &AuthService{
		memberRepo:   memberRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
		adminMembers: admins,
	}
}

type AuthResult struct {
	Token  string       `json:"token"`
	Member model.Member `json:"member"`
}

func (s *AuthService) Register(ctx context.Context, name, password string) (*AuthResult, *apperrors.APIError) {
	name = strings.TrimSpace(name)
	if apiErr := validateMemberName(name); apiErr != nil {
		return nil, apiErr
	}
	if len(password) < 6 {
		return nil, apperrors.BadRequest("invalid_password", "password must be at least 6 characters")
	}

	_, err := s.memberRepo.GetByName(ctx, name)
	if err == nil {
		return nil, apperrors.Conflict("name_taken", "member name already registered", nil)
	}
	if err != repository.ErrNotFound {
		log.Error().Err(err).Msg("Failed to query member")
		return nil, apperrors.Internal("failed to query member")
	}

	passwordHashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure password")
	}

	now := time.Now().UTC()
	member := model.Member{
		ID:           uuid.NewString(),
		Name:         name,
		PasswordHash: string(passwordHashBytes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.memberRepo.Create(ctx, &member); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperrors.Conflict("name_taken", "member name already registered", nil)
		}
		log.Error().Err(err).Msg("Failed to create member")
		return nil, apperrors.Internal("failed to create member")
	}

	return s.authenticated(member)
}

func (s *AuthService) Login(ctx context.Context, name, password string) (*AuthResult, *apperrors.APIError) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "name and password are required")
	}

	member, err := s.memberRepo.GetByName(ctx, name)
	if err == repository.ErrNotFound {
		return nil, apperrors.Unauthorized("invalid name or password")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to query member")
		return nil, apperrors.Internal("failed to query member")
	}

	if bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("invalid name or password")
	}

	return s.authenticated(*member)
}

// Member loads a registered member with their rank filled in.
func (s *AuthService) Member(ctx context.Context, id string) (*model.Member, *apperrors.APIError) {
	member, err := s.memberRepo.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.Unauthorized("member no longer exists")
	}
	if err != nil {
		log.Error().Err(err).Str("member_id", id).Msg("Failed to load member")
		return nil, apperrors.Internal("failed to load member")
	}
	member.PasswordHash = ""
	member.Admin = s.isAdmin(member.Name)
	return member, nil
}

func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", apperrors.Unauthorized("invalid token")
	}

	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}

	return claims.Subject, nil
}

func (s *AuthService) authenticated(member model.Member) (*AuthResult, *apperrors.APIError) {
	token, apiErr := s.issueToken(member)
	if apiErr != nil {
		return nil, apiErr
	}

	member.PasswordHash = ""
	member.Admin = s.isAdmin(member.Name)
	return &AuthResult{
		Token:  token,
		Member: member,
	}, nil
}

func (s *AuthService) issueToken(member model.Member) (string, *apperrors.APIError) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   member.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}

func (s *AuthService) isAdmin(name string) bool {
	_, ok := s.adminMembers[strings.ToLower(name)]
	return ok
}

// Names show up in mentions ("@name"), so they are a single word.
func validateMemberName(name string) *apperrors.APIError {
	if name == "" {
		return apperrors.BadRequest("invalid_name", "name is required")
	}
	if len([]rune(name)) > maxMemberNameLength {
		return apperrors.BadRequest("invalid_name", "name must be at most 32 characters")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || r == '@' {
			return apperrors.BadRequest("invalid_name", "name must be a single word without '@'")
		}
	}
	return nil
}

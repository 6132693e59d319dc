package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInvalidToken signals a bearer token that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)

const tokenTTL = 24 * time.Hour

// Service handles authentication business logic.
type Service struct {
	repo      Repository
	jwtSecret []byte
	now       func() time.Time
}

// LoginResult bundles the token and domain user returned after a successful login.
type LoginResult struct {
	Token string
	User  User
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a new member of an organization.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}

	if req.Email == "" || req.FullName == "" || req.OrgID == "" {
		return nil, fmt.Errorf("auth: org_id, email and full_name are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	role := Role(strings.ToUpper(strings.TrimSpace(string(req.Role))))
	if role == "" {
		role = RoleMember
	}
	if !isValidRole(role) {
		return nil, fmt.Errorf("auth: invalid role %q", role)
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		OrgID:        req.OrgID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates a user and returns a JWT token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !user.Active {
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(Principal{UserID: user.ID, OrgID: user.OrgID, Role: user.Role})
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		User:  user,
	}, nil
}

// GetUser retrieves a member of an organization.
func (s *Service) GetUser(ctx context.Context, orgID, userID string) (*User, error) {
	user, err := s.repo.GetUserInOrg(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyToken validates a JWT token and returns the principal it carries.
func (s *Service) VerifyToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	orgID, _ := claims["org_id"].(string)
	roleStr, _ := claims["role"].(string)
	if userID == "" || orgID == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := Role(roleStr)
	if !isValidRole(role) {
		return Principal{}, fmt.Errorf("%w: role %q", ErrInvalidToken, roleStr)
	}

	return Principal{UserID: userID, OrgID: orgID, Role: role}, nil
}

// IssueToken signs a token for p.
func (s *Service) IssueToken(p Principal) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": p.UserID,
		"org_id":  p.OrgID,
		"role":    string(p.Role),
		"exp":     now.Add(tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func isValidRole(role Role) bool {
	switch role {
	case RoleFounder, RoleAdmin, RoleManager, RoleMember:
		return true
	default:
		return false
	}
}

package services

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"tms/pkg/errs"
	"tms/pkg/middleware"
	"tms/pkg/models"
	"tms/pkg/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(req models.RegisterRequest, userAgent, ip string) (models.AuthResponse, error)
	Login(req models.LoginRequest, userAgent, ip string) (models.AuthResponse, error)
	Refresh(refreshToken string) (models.AuthResponse, error)
	Me(userID int) (models.User, error)
	Logout(refreshToken string) error
	LogoutAll(userID int) error
	Sessions(userID int) ([]models.Session, error)
	Users() ([]models.User, error)
}

type authService struct {
	repo      repository.UserRepository
	jwtSecret string
}

func NewAuthService(repo repository.UserRepository) AuthService {
	return &authService{repo: repo, jwtSecret: middleware.JwtSecret()}
}

func (s *authService) Register(req models.RegisterRequest, userAgent, ip string) (models.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = models.RoleStudent
	}

	if req.Name == "" {
		return models.AuthResponse{}, errs.Validation("name is required")
	}
	if !strings.Contains(req.Email, "@") {
		return models.AuthResponse{}, errs.Validation("invalid email address")
	}
	if len(req.Password) < 8 {
		return models.AuthResponse{}, errs.Validation("password must be at least 8 characters")
	}
	if len(req.Password) > 128 {
		return models.AuthResponse{}, errs.Validation("password too long")
	}
	// Admin accounts are provisioned out of band, never self-registered.
	if !models.ValidRole(req.Role) || req.Role == models.RoleAdmin {
		return models.AuthResponse{}, errs.Validation("invalid role %q", req.Role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.AuthResponse{}, err
	}

	user, err := s.repo.CreateUser(req.Name, req.Email, string(hashed), req.Role)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return models.AuthResponse{}, errs.Validation("email already registered")
		}
		return models.AuthResponse{}, err
	}

	return s.createSessionAndRespond(user, userAgent, ip)
}

func (s *authService) Login(req models.LoginRequest, userAgent, ip string) (models.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return models.AuthResponse{}, errs.Validation("email and password are required")
	}

	user, hashedPw, err := s.repo.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return models.AuthResponse{}, errs.Authorization("incorrect email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPw), []byte(req.Password)); err != nil {
		return models.AuthResponse{}, errs.Authorization("incorrect email or password")
	}

	return s.createSessionAndRespond(user, userAgent, ip)
}

func (s *authService) Refresh(refreshToken string) (models.AuthResponse, error) {
	if refreshToken == "" {
		return models.AuthResponse{}, errs.Validation("refresh token is required")
	}

	session, user, err := s.repo.GetSessionByToken(refreshToken)
	if err != nil {
		return models.AuthResponse{}, errs.Authorization("invalid or expired session")
	}

	if time.Now().After(session.ExpiresAt) {
		s.repo.DeleteSessionByID(session.ID)
		return models.AuthResponse{}, errs.Authorization("session expired, please log in again")
	}

	newRefresh := generateRefreshToken()
	newExpiry := time.Now().Add(30 * 24 * time.Hour)

	if err := s.repo.UpdateSession(session.ID, newRefresh, newExpiry); err != nil {
		return models.AuthResponse{}, err
	}

	return models.AuthResponse{
		AccessToken:  s.generateAccessToken(user),
		RefreshToken: newRefresh,
		User:         user,
		ExpiresIn:    3600,
	}, nil
}

func (s *authService) Me(userID int) (models.User, error) {
	return s.repo.GetUserByID(userID)
}

func (s *authService) Logout(refreshToken string) error {
	if refreshToken != "" {
		return s.repo.DeleteSessionByToken(refreshToken)
	}
	return nil
}

func (s *authService) LogoutAll(userID int) error {
	return s.repo.DeleteAllSessionsByUserID(userID)
}

func (s *authService) Sessions(userID int) ([]models.Session, error) {
	return s.repo.GetActiveSessionsByUserID(userID)
}

func (s *authService) Users() ([]models.User, error) {
	return s.repo.ListUsers()
}

func (s *authService) createSessionAndRespond(user models.User, userAgent, ip string) (models.AuthResponse, error) {
	refreshToken := generateRefreshToken()
	expiresAt := time.Now().Add(30 * 24 * time.Hour)

	if err := s.repo.CreateSession(user.ID, refreshToken, userAgent, ip, expiresAt); err != nil {
		return models.AuthResponse{}, err
	}

	return models.AuthResponse{
		AccessToken:  s.generateAccessToken(user),
		RefreshToken: refreshToken,
		User:         user,
		ExpiresIn:    3600,
	}, nil
}

func (s *authService) generateAccessToken(user models.User) string {
	claims := jwt.MapClaims{
		"user_id":    user.ID,
		"uuid":       user.UUID,
		"name":       user.Name,
		"role":       user.Role,
		"exp":        time.Now().Add(1 * time.Hour).Unix(),
		"iat":        time.Now().Unix(),
		"token_type": "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, _ := token.SignedString([]byte(s.jwtSecret))
	return tokenStr
}

func generateRefreshToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// 운영자 인증 비즈니스 로직 정의
//
// 처리 흐름:
//  1. Bootstrap: 환경변수로 지정된 초기 운영자 계정을 bcrypt 해시로 생성
//  2. Login: 자격 검증 후 access/refresh JWT 발급
//  3. Refresh: refresh 토큰(typ=refresh claim)으로 새 access 토큰 발급
//  4. ParseAccessToken: 미들웨어에서 access 토큰 검증
//
// refresh 토큰은 무상태 JWT - 운영자 1~2명 규모 홈랩에서 회전/폐기
// 테이블 관리가 과하다고 판단, typ claim으로 access와 교차 사용만 차단.

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lab-sentinel/backend/internal/config"
	"github.com/lab-sentinel/backend/internal/db"
	"github.com/lab-sentinel/backend/internal/model"
)

const (
	minLoginIDLength  = 3
	minPasswordLength = 8

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrMisconfigured = errors.New("auth config invalid")
)

// operatorStore - 운영자 계정 조회/생성
type operatorStore interface {
	GetOperatorByLoginID(ctx context.Context, loginID string) (*model.OperatorAccount, error)
	CreateOperator(ctx context.Context, loginID, passwordHash string) error
}

// AuthService 구조체 정의
type AuthService struct {
	store      operatorStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

type authClaims struct {
	LoginID   string `json:"loginId"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// AuthService 객체 생성
func NewAuthService(store operatorStore, cfg config.AuthConfig) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	if cfg.AccessTTLMin <= 0 || cfg.RefreshTTLMin <= 0 {
		return nil, fmt.Errorf("%w: token TTLs must be positive", ErrMisconfigured)
	}

	return &AuthService{
		store:      store,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTTLMin) * time.Minute,
		now:        time.Now,
	}, nil
}

// Bootstrap - 초기 운영자 계정 생성 (이미 있으면 no-op)
func (s *AuthService) Bootstrap(ctx context.Context, loginID, password string) error {
	if strings.TrimSpace(loginID) == "" || strings.TrimSpace(password) == "" {
		return nil // 부트스트랩 계정 미지정은 허용
	}
	if err := validateCredentials(loginID, password); err != nil {
		return fmt.Errorf("%w: bootstrap credentials too short", ErrMisconfigured)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.CreateOperator(ctx, loginID, string(hash))
}

// Login - 자격 검증 후 토큰 쌍 발급
func (s *AuthService) Login(ctx context.Context, loginID, password string) (access, refresh string, err error) {
	if err := validateCredentials(loginID, password); err != nil {
		return "", "", err
	}

	account, err := s.store.GetOperatorByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			return "", "", ErrUnauthorized
		}
		return "", "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrUnauthorized
	}

	access, err = s.generateToken(account.ID, account.LoginID, tokenTypeAccess, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.generateToken(account.ID, account.LoginID, tokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Refresh - refresh 토큰 검증 후 새 access 토큰 발급
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return "", err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return "", ErrUnauthorized
	}
	return s.generateToken(userID, claims.LoginID, tokenTypeAccess, s.accessTTL)
}

// ParseAccessToken - access 토큰 검증 (미들웨어용)
func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims, err := s.parseToken(tokenStr, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return &model.AuthUser{ID: userID, LoginID: claims.LoginID}, nil
}

func (s *AuthService) generateToken(userID int64, loginID, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := authClaims{
		LoginID:   loginID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *AuthService) parseToken(tokenStr, wantType string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if claims.TokenType != wantType {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func validateCredentials(loginID, password string) error {
	loginID = strings.TrimSpace(loginID)
	password = strings.TrimSpace(password)

	if len(loginID) < minLoginIDLength || len(loginID) > 64 {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return ErrInvalidInput
	}
	return nil
}

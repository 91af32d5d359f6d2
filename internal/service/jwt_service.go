package service

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"user-api/internal/domain"
)

// JWTService emite y valida tokens de sesión firmados con HS256.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Claims son los datos que viajan en el token de sesión.
type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

var ErrJWTInvalid = errors.New("jwt invalid")

// NewJWTService crea el servicio. Con ttl <= 0 los tokens no expiran.
func NewJWTService(secret, issuer string, ttl time.Duration) *JWTService {
	if strings.TrimSpace(issuer) == "" {
		issuer = "user-api"
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ClaimsFor construye los claims de sesión de una cuenta.
func ClaimsFor(user domain.User) Claims {
	return Claims{UserID: user.ID, Email: user.Email}
}

// Encode firma los claims. Cada token lleva jti e iat propios.
func (s *JWTService) Encode(claims Claims) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:       uuid.NewString(),
		Issuer:   s.issuer,
		Subject:  strconv.FormatInt(claims.UserID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Decode valida firma, algoritmo, emisor y expiración. Un token inválido
// devuelve ok=false; nunca entra en pánico ni propaga el error del parser.
func (s *JWTService) Decode(tokenString string) (Claims, bool) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, false
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, false
	}
	if claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return Claims{}, false
	}
	return claims, true
}

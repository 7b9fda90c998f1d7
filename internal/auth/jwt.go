package auth

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const AccessTokenExpirationTime = time.Minute * 15

type Role string

const (
	RoleUser  Role = "User"
	RoleMod   Role = "Mod"
	RoleSuper Role = "Super"
)

var (
	ErrMissingToken = errors.New("missing authorization token")
	ErrEmptySecret  = errors.New("token secret is not configured")
)

type JWTClaim struct {
	Id        string `json:"id"`
	LoginName string `json:"login_name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claim may change the taxonomy.
func (c JWTClaim) IsAdmin() bool {
	return c.Role == RoleSuper || c.Role == RoleMod
}

// TokenManager signs and checks HS256 access tokens with one secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a manager for secret. A manager with an empty secret
// refuses to sign or validate anything; NewServiceContainerWith rejects one
// outright.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: AccessTokenExpirationTime}
}

// Configured reports whether the manager has a signing secret.
func (m *TokenManager) Configured() bool {
	return m != nil && len(m.secret) > 0
}

// Generate auth token for a user session
func (m *TokenManager) GenerateJWT(id, email, loginName string, role Role) (string, int64, error) {
	if !m.Configured() {
		return "", 0, ErrEmptySecret
	}
	expirationTime := time.Now().Add(m.ttl)

	claims := JWTClaim{
		Id:        id,
		LoginName: loginName,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", 0, errors.Wrap(err, "sign token")
	}

	return tokenString, expirationTime.Unix(), nil
}

// Validate a signed jwt auth token and it's expiration time.
func (m *TokenManager) ValidateToken(signedToken string) (JWTClaim, error) {
	if !m.Configured() {
		return JWTClaim{}, ErrEmptySecret
	}
	if signedToken == "" {
		return JWTClaim{}, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(
		signedToken,
		&JWTClaim{},
		func(token *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return JWTClaim{}, errors.Wrap(err, "invalid token")
	}

	claim, ok := token.Claims.(*JWTClaim)
	if !ok {
		return JWTClaim{}, errors.New("couldn't parse claims")
	}
	return *claim, nil
}

// Extract authorization token from request header.
func ExtractToken(c *gin.Context) string {
	tokenString := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "bearer ") {
		tokenString = strings.TrimSpace(tokenString[7:])
	}
	return tokenString
}

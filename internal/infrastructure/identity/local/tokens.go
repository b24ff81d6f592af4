package local

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errWrongTokenType = errors.New("token type mismatch")

// sessionClaims are carried by both access and refresh tokens. SessionID ties
// them to the revocable server-side session record.
type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	Type      string `json:"typ"`
}

type tokenPair struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

func (p *Provider) issue(userID, sessionID string) (tokenPair, error) {
	now := p.now()
	accessExp := now.Add(p.cfg.AccessTTL)

	access, err := p.sign(userID, sessionID, tokenTypeAccess, now, accessExp, p.cfg.AccessSecret)
	if err != nil {
		return tokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := p.sign(userID, sessionID, tokenTypeRefresh, now, now.Add(p.cfg.RefreshTTL), p.cfg.RefreshSecret)
	if err != nil {
		return tokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return tokenPair{Access: access, Refresh: refresh, ExpiresAt: accessExp}, nil
}

func (p *Provider) sign(userID, sessionID, typ string, now, exp time.Time, secret []byte) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		SessionID: sessionID,
		Type:      typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parse verifies signature, issuer, and (unless skipExpiry) expiry of raw.
func (p *Provider) parse(raw, typ string, secret []byte, skipExpiry bool) (*sessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithTimeFunc(p.now),
	}
	if skipExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	claims := &sessionClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.Type != typ {
		return nil, errWrongTokenType
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// newOTP returns a random URL-safe login token.
func newOTP() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// otpDigest is what gets stored: a leaked store never yields usable links.
func (p *Provider) otpDigest(token string) string {
	mac := hmac.New(sha256.New, p.cfg.OTPSecret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

package share

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const verificationTokenType = "share_verification"

type verificationClaims struct {
	ShareID uint64 `json:"shareId"`
	Token   string `json:"token"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

// VerificationCodec 签发分享密码验证通过后的短期令牌
type VerificationCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVerificationCodec(secret string, ttl time.Duration) *VerificationCodec {
	return &VerificationCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (c *VerificationCodec) Issue(shareID uint64, shareToken string) (string, error) {
	now := c.now()
	claims := verificationClaims{
		ShareID: shareID,
		Token:   shareToken,
		Type:    verificationTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("verification codec: sign: %w", err)
	}
	return signed, nil
}

// Valid 令牌必须签发给同一个分享
func (c *VerificationCodec) Valid(verificationToken string, shareID uint64, shareToken string) bool {
	claims := &verificationClaims{}
	parsed, err := jwt.ParseWithClaims(verificationToken, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Type == verificationTokenType && claims.ShareID == shareID && claims.Token == shareToken
}

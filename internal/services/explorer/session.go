package explorer

import (
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/golang-jwt/jwt/v5"
)

const sessionTokenType = "multipart_upload"

// UploadSession 一次分块上传的全部状态，只存在于签名令牌中，不落库
type UploadSession struct {
	OwnerID   uint64  `json:"ownerId"`
	Filename  string  `json:"filename"`
	Mime      string  `json:"mime"`
	Size      int64   `json:"size"`
	FolderID  *uint64 `json:"folderId,omitempty"`
	Key       string  `json:"key"`
	UploadID  string  `json:"uploadId"`
	PartSize  int64   `json:"partSize"`
	PartCount int     `json:"partCount"`
}

type sessionClaims struct {
	UploadSession
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// SessionCodec 负责上传会话令牌的签发与校验
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	return &SessionCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Encode 签发令牌，有效期与预签名 URL 相同
func (c *SessionCodec) Encode(session UploadSession) (string, error) {
	now := c.now()
	claims := sessionClaims{
		UploadSession: session,
		Type:          sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session codec: sign: %w", err)
	}
	return token, nil
}

// Decode 校验签名、过期时间与会话内容
func (c *SessionCodec) Decode(token string) (*UploadSession, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, xerr.ErrInvalidUploadToken
	}
	if err := validateSession(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.ErrInvalidUploadToken, err)
	}
	session := claims.UploadSession
	return &session, nil
}

func validateSession(claims *sessionClaims) error {
	switch {
	case claims.Type != sessionTokenType:
		return errors.New("unexpected token type")
	case claims.OwnerID == 0:
		return errors.New("missing owner")
	case claims.Size <= 0 || claims.PartSize <= 0 || claims.PartCount <= 0:
		return errors.New("non-positive size")
	case claims.PartCount > config.MaxMultipartParts:
		return errors.New("too many parts")
	case claims.Key == "" || claims.UploadID == "":
		return errors.New("missing storage key")
	}
	return nil
}

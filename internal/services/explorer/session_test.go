package explorer

import (
	"testing"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUploadSecret = "upload-secret-for-tests-0123456789abcdef"

func testSession() UploadSession {
	return UploadSession{
		OwnerID:   7,
		Filename:  "report.pdf",
		Mime:      "application/pdf",
		Size:      20,
		Key:       "7/2026/03/abcd-report.pdf",
		UploadID:  "upload-1",
		PartSize:  8,
		PartCount: 3,
	}
}

func TestSessionCodec_RoundTrip(t *testing.T) {
	codec := NewSessionCodec(testUploadSecret, 15*time.Minute)

	token, err := codec.Encode(testSession())
	require.NoError(t, err)

	session, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, testSession(), *session)
}

func TestSessionCodec_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewSessionCodec(testUploadSecret, 15*time.Minute)
	codec.now = func() time.Time { return now }

	token, err := codec.Encode(testSession())
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, xerr.ErrInvalidUploadToken)
}

func TestSessionCodec_RejectsForeignTokens(t *testing.T) {
	codec := NewSessionCodec(testUploadSecret, 15*time.Minute)

	other := NewSessionCodec("another-upload-secret-0123456789abcdef", 15*time.Minute)
	foreign, err := other.Encode(testSession())
	require.NoError(t, err)
	_, err = codec.Decode(foreign)
	assert.ErrorIs(t, err, xerr.ErrInvalidUploadToken)

	_, err = codec.Decode("not-a-token")
	assert.ErrorIs(t, err, xerr.ErrInvalidUploadToken)

	// 签名正确但类型不对，例如其他用途的令牌
	claims := sessionClaims{
		UploadSession: testSession(),
		Type:          "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	wrongType, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testUploadSecret))
	require.NoError(t, err)
	_, err = codec.Decode(wrongType)
	assert.ErrorIs(t, err, xerr.ErrInvalidUploadToken)
}

func TestSessionCodec_RejectsIncompleteSession(t *testing.T) {
	codec := NewSessionCodec(testUploadSecret, 15*time.Minute)

	session := testSession()
	session.UploadID = ""
	token, err := codec.Encode(session)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, xerr.ErrInvalidUploadToken)
}

func TestNormalizePartNumbers(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, NormalizePartNumbers(nil, 3))
	assert.Equal(t, []int{1, 3}, NormalizePartNumbers([]int{3, 0, 1, 3, 9, -1}, 3))
	assert.Empty(t, NormalizePartNumbers([]int{4, 5}, 3))
}

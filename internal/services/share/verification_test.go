package share

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "share-secret-for-tests-0123456789abcdef"

func TestVerificationCodec(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewVerificationCodec(testSecret, 10*time.Minute)
	codec.now = func() time.Time { return now }

	token, err := codec.Issue(7, "abc")
	require.NoError(t, err)

	assert.True(t, codec.Valid(token, 7, "abc"))
	assert.False(t, codec.Valid(token, 8, "abc"), "签发给其他分享")
	assert.False(t, codec.Valid(token, 7, "other"), "token 不一致")
	assert.False(t, codec.Valid(token+"x", 7, "abc"), "签名被篡改")

	other := NewVerificationCodec("another-secret-for-tests-0123456789abcd", 10*time.Minute)
	other.now = codec.now
	assert.False(t, other.Valid(token, 7, "abc"), "不同密钥")

	now = now.Add(11 * time.Minute)
	assert.False(t, codec.Valid(token, 7, "abc"), "已过期")
}

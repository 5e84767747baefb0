package encryption

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New("test-instance-secret")
	require.NoError(t, err)
	return c
}

func TestNew_MissingSecret(t *testing.T) {
	for _, secret := range []string{"", "   ", "\n\t"} {
		_, err := New(secret)
		assert.ErrorIs(t, err, ErrMissingSecret)
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey([]byte("secret"))
	b := DeriveKey([]byte("secret"))
	c := DeriveKey([]byte("other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, KeySize)
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plain := range []string{
		"hello",
		"",
		"exactly sixteen!",
		strings.Repeat("long message ", 200),
		"čćžšđ 你好 🎉",
	} {
		blob, err := c.Encrypt(plain)
		require.NoError(t, err)

		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestCipher_FreshIVPerCall(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("hello")
	require.NoError(t, err)
	b, err := c.Encrypt("hello")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	rawA, _ := base64.StdEncoding.DecodeString(a)
	rawB, _ := base64.StdEncoding.DecodeString(b)
	assert.NotEqual(t, rawA[:IVSize], rawB[:IVSize])
}

func TestCipher_DecryptAcrossInstancesWithSameSecret(t *testing.T) {
	first, err := New("shared")
	require.NoError(t, err)
	second, err := New("shared")
	require.NoError(t, err)

	blob, err := first.Encrypt("restart safe")
	require.NoError(t, err)

	got, err := second.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "restart safe", got)
}

func TestCipher_DecryptMalformed(t *testing.T) {
	c := newTestCipher(t)
	valid, err := c.Encrypt("hello world")
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(valid)

	truncated := base64.StdEncoding.EncodeToString(raw[:len(raw)-3])
	ivOnly := base64.StdEncoding.EncodeToString(raw[:IVSize])

	cases := map[string]string{
		"not base64":     "%%%not-base64%%%",
		"empty":          "",
		"iv only":        ivOnly,
		"unaligned body": truncated,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decrypt(blob)
			assert.True(t, errors.Is(err, ErrDecryption), "got %v", err)
		})
	}
}

func TestCipher_DecryptWithWrongKeyFails(t *testing.T) {
	c := newTestCipher(t)
	other, err := New("a different secret")
	require.NoError(t, err)

	blob, err := c.Encrypt("hello")
	require.NoError(t, err)

	got, err := other.Decrypt(blob)
	if err == nil {
		// Padding can validate by chance; the text must still differ.
		assert.NotEqual(t, "hello", got)
		return
	}
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestUnpad_RejectsBadPadding(t *testing.T) {
	block := make([]byte, 16)
	block[15] = 0
	_, err := unpad(block, 16)
	assert.Error(t, err)

	block[15] = 17
	_, err = unpad(block, 16)
	assert.Error(t, err)

	block[15], block[14] = 2, 3
	_, err = unpad(block, 16)
	assert.Error(t, err)
}

package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("s3cr3t", "pw")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "s3cr3t")

	got, err := DecryptSecret(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got)

	_, err = DecryptSecret(blob, "wrong")
	require.Error(t, err)
}

func TestLoadSecret(t *testing.T) {
	got, err := LoadSecret(SecretConfig{Secret: "raw", SecretFile: "/nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, "raw", got)

	blob, err := EncryptSecret("from-file", "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "secret.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadSecret(SecretConfig{SecretFile: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	_, err = LoadSecret(SecretConfig{})
	require.Error(t, err)
}

func TestHeadersAt(t *testing.T) {
	h := &HMACAuth{Key: "key", Secret: "secret"}
	headers := h.HeadersAt("POST", "https://api.example.com/v3/orders", []byte(`{"a":1}`), 1700000000000)

	sum := sha512.Sum512([]byte(`{"a":1}`))
	contentHash := hex.EncodeToString(sum[:])
	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write([]byte("1700000000000" + "https://api.example.com/v3/orders" + "POST" + contentHash))

	assert.Equal(t, "key", headers[HeaderAPIKey])
	assert.Equal(t, "1700000000000", headers[HeaderTimestamp])
	assert.Equal(t, contentHash, headers[HeaderContentHash])
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), headers[HeaderSignature])
	assert.Equal(t, "HMACAuth{key=****, secret=secr****}", h.String())
}

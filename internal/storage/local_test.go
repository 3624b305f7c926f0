package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signerMock struct{ key string }

func (s *signerMock) MintObject(key string, _ time.Duration) (string, error) {
	s.key = key
	return "signed-token", nil
}

func newStore(t *testing.T) (*LocalStore, *signerMock) {
	t.Helper()
	signer := &signerMock{}
	s, err := NewLocalStore(t.TempDir(), "http://api.test/", signer)
	require.NoError(t, err)
	return s, signer
}

func TestPutAndResolve(t *testing.T) {
	s, _ := newStore(t)

	url, err := s.Put(context.Background(), "kyc/u1/front-abc.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/v1/files/kyc/u1/front-abc.png", url)

	key, err := s.KeyFromURL(url)
	require.NoError(t, err)
	assert.Equal(t, "kyc/u1/front-abc.png", key)

	p, err := s.Path(key)
	require.NoError(t, err)
	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(raw))
	assert.Equal(t, "u1", OwnerOf(key))
}

func TestPathRejectsTraversal(t *testing.T) {
	s, _ := newStore(t)
	for _, key := range []string{"", "../etc/passwd", "kyc/../../x", "/abs", ".hidden"} {
		_, err := s.Path(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestSignedURL(t *testing.T) {
	s, signer := newStore(t)

	signed, err := s.SignedURL("http://api.test/v1/files/kyc/u1/selfie.png", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/v1/documents/signed-token", signed)
	assert.Equal(t, "kyc/u1/selfie.png", signer.key)

	_, err = s.SignedURL("http://elsewhere.test/images/x.png", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPutHonoursCancelledContext(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "kyc/u1/back.png", "image/png", strings.NewReader("data"))
	require.Error(t, err)
	_, statErr := os.Stat(s.dir + "/kyc/u1/back.png")
	assert.True(t, os.IsNotExist(statErr))
}

func TestPingChecksDirectoryIsWritable(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Ping(context.Background()))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "ping must not leave files behind")

	require.NoError(t, os.RemoveAll(s.dir))
	assert.Error(t, s.Ping(context.Background()))
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	// FilesPath serves stored objects to authenticated owners and admins.
	FilesPath = "/v1/files/"
	// SignedPath serves an object to anyone holding a valid grant token.
	SignedPath = "/v1/documents/"
)

var ErrInvalidKey = errors.New("storage: invalid object key")

type TokenSigner interface {
	MintObject(key string, ttl time.Duration) (string, error)
}

// LocalStore keeps uploaded documents on the local filesystem under dir.
type LocalStore struct {
	dir     string
	baseURL string
	signer  TokenSigner
}

func NewLocalStore(dir, publicBaseURL string, signer TokenSigner) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		signer:  signer,
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	full, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: body}); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", err
	}
	return s.baseURL + FilesPath + key, nil
}

// Ping reports whether the store directory exists and accepts writes.
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: %s is not a directory", s.dir)
	}
	f, err := os.CreateTemp(s.dir, ".ping-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Path resolves key to a file inside the store, rejecting anything that
// would escape it.
func (s *LocalStore) Path(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key || strings.HasPrefix(clean, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// KeyFromURL extracts the object key from a URL previously returned by Put.
func (s *LocalStore) KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrInvalidKey
	}
	if !strings.HasPrefix(u.Path, FilesPath) {
		return "", ErrInvalidKey
	}
	key := strings.TrimPrefix(u.Path, FilesPath)
	if _, err := s.Path(key); err != nil {
		return "", err
	}
	return key, nil
}

func (s *LocalStore) SignedURL(rawURL string, ttl time.Duration) (string, error) {
	key, err := s.KeyFromURL(rawURL)
	if err != nil {
		return "", err
	}
	token, err := s.signer.MintObject(key, ttl)
	if err != nil {
		return "", err
	}
	return s.baseURL + SignedPath + token, nil
}

// OwnerOf returns the user id a key was stored for, or "" when the key is
// not namespaced by user.
func OwnerOf(key string) string {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 || parts[0] != "kyc" {
		return ""
	}
	return parts[1]
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

package blob

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store keeps uploaded documents and generated reports as files under the
// workspace. Paths are opaque keys relative to the store root.
type Store struct {
	Root   string
	Secret string
	Now    func() time.Time
}

var ErrInvalidPath = errors.New("invalid blob path")

func New(workspace, secret string) (*Store, error) {
	root := filepath.Join(workspace, ".novadream", "blobs")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{Root: root, Secret: secret, Now: time.Now}, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// resolve maps a key to a file path, refusing traversal outside the root.
func (s *Store) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.Root, clean), nil
}

func (s *Store) Put(key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) Get(key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s: %w", key, os.ErrNotExist)
	}
	return data, err
}

func (s *Store) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

type urlClaims struct {
	jwt.RegisteredClaims
	Path string `json:"path"`
}

// CreateSignedURL returns a relative download URL carrying an HMAC token that
// expires after ttl.
func (s *Store) CreateSignedURL(key string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return "", errors.New("signed url secret not configured")
	}
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	now := s.now()
	claims := urlClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Path: key,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if err != nil {
		return "", err
	}
	return "/v0/blobs/download?token=" + url.QueryEscape(token), nil
}

// VerifySignedToken validates a download token and returns the blob key.
func (s *Store) VerifySignedToken(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	claims := &urlClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Path == "" {
		return "", errors.New("invalid download token")
	}
	return claims.Path, nil
}

package blob_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"novadream/internal/blob"
)

func newStore(t *testing.T) *blob.Store {
	t.Helper()
	s, err := blob.New(t.TempDir(), "url-secret")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newStore(t)
	key := "documents/owner-1/doc-1"
	if err := s.Put(key, []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(key); err == nil {
		t.Fatal("deleted blob must not be readable")
	}
	// Deleting a missing blob is not an error.
	if err := s.Delete(key); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestResolveRefusesEscape(t *testing.T) {
	s := newStore(t)
	if err := s.Put("reports/p1/../../p2/r.md", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Traversal collapses inside the root instead of escaping it.
	data, err := s.Get("p2/r.md")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "x" {
		t.Fatalf("data = %q", data)
	}
	if err := s.Put("..", []byte("x")); err == nil {
		t.Fatal("root itself must be rejected")
	}
}

func TestSignedURLRoundTrip(t *testing.T) {
	s := newStore(t)
	key := "reports/p1/r.md"
	if err := s.Put(key, []byte("# report")); err != nil {
		t.Fatal(err)
	}
	signed, err := s.CreateSignedURL(key, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(u.Path, "/blobs/download") {
		t.Fatalf("path = %q", u.Path)
	}
	got, err := s.VerifySignedToken(u.Query().Get("token"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != key {
		t.Fatalf("key = %q, want %q", got, key)
	}
}

func TestSignedURLExpires(t *testing.T) {
	s := newStore(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }
	signed, err := s.CreateSignedURL("reports/p1/r.md", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(signed)
	token := u.Query().Get("token")

	s.Now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := s.VerifySignedToken(token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestSignedURLRequiresSecret(t *testing.T) {
	s, err := blob.New(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateSignedURL("k", time.Minute); err == nil {
		t.Fatal("signing without a secret must fail")
	}
}

package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// LocalStore keeps blobs on the local filesystem under a root directory
// and signs download URLs with an HMAC over path and expiry, so the file
// endpoint can verify references without shared state.
type LocalStore struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewLocal builds a filesystem store. baseURL is the public prefix signed
// references point at (e.g. "http://localhost:8080/files").
func NewLocal(root, baseURL, secret string) *LocalStore {
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}
}

func (s *LocalStore) fullPath(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return "", eris.New("blob: empty path")
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Exists(ctx context.Context, p string) (bool, error) {
	fp, err := s.fullPath(p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fp); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "blob: stat %s", p)
	}
	return true, nil
}

func (s *LocalStore) Save(ctx context.Context, p string, data []byte) error {
	fp, err := s.fullPath(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return eris.Wrapf(err, "blob: mkdir for %s", p)
	}
	if err := os.WriteFile(fp, data, 0o644); err != nil {
		return eris.Wrapf(err, "blob: write %s", p)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, p string) ([]byte, error) {
	fp, err := s.fullPath(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fp)
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read %s", p)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, p string) error {
	fp, err := s.fullPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "blob: delete %s", p)
	}
	return nil
}

// List walks the tree under prefix and returns blob paths relative to the
// store root, forward-slashed.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	fp, err := s.fullPath(prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(fp, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrapf(err, "blob: list %s", prefix)
	}
	return out, nil
}

// SignedURL issues a reference valid until now+ttl. The signature covers
// the path and the expiry timestamp.
func (s *LocalStore) SignedURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", eris.Errorf("blob: no such blob %s", p)
	}
	expires := s.now().Add(ttl).Unix()
	sig := s.sign(p, expires)
	return fmt.Sprintf("%s/%s?expires=%d&sig=%s", s.baseURL, p, expires, sig), nil
}

// Verify checks a signed reference's signature and expiry. Used by the
// file-serving endpoint.
func (s *LocalStore) Verify(p string, query url.Values) error {
	expStr := query.Get("expires")
	expires, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return eris.New("blob: malformed expiry")
	}
	if s.now().Unix() > expires {
		return eris.New("blob: reference expired")
	}
	want := s.sign(p, expires)
	if !hmac.Equal([]byte(want), []byte(query.Get("sig"))) {
		return eris.New("blob: bad signature")
	}
	return nil
}

func (s *LocalStore) sign(p string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", path.Clean("/"+p), expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Package credentials keeps the account email and password between runs.
//
// The file is written with mode 0600 and its contents are sealed with
// AES-GCM under a key derived from the installation. This keeps the
// password out of plain text; it is not a substitute for an OS keychain.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tailored-agentic-units/relay/apierr"
)

// Credentials identify the streaming account.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

type sealedFile struct {
	Email    string `json:"email"`    // base64(ciphertext)
	Password string `json:"password"` // base64(ciphertext)
}

// Store persists one set of credentials.
type Store struct {
	path string
	key  []byte
	mu   sync.Mutex
}

// NewStore keeps credentials in path. seed distinguishes installations; an
// empty seed derives the key from the OS and user name only.
func NewStore(path, seed string) *Store {
	base := fmt.Sprintf("relay-%s-%s-%s", runtime.GOOS, os.Getenv("USER"), seed)
	hash := sha256.Sum256([]byte(base))
	return &Store{path: path, key: hash[:]}
}

// Get returns the stored credentials. It fails with MissingCredentialsError
// when none are stored or the stored ones cannot be read back.
func (s *Store) Get() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, apierr.New(apierr.MissingCredentialsError, "no stored credentials")
		}
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	var sf sealedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return Credentials{}, apierr.Newf(apierr.MissingCredentialsError, "unreadable credentials file: %v", err)
	}

	email, err := s.open(sf.Email)
	if err != nil {
		return Credentials{}, apierr.Newf(apierr.MissingCredentialsError, "cannot decrypt email: %v", err)
	}
	password, err := s.open(sf.Password)
	if err != nil {
		return Credentials{}, apierr.Newf(apierr.MissingCredentialsError, "cannot decrypt password: %v", err)
	}

	creds := Credentials{Email: email, Password: password}
	if !creds.Valid() {
		return Credentials{}, apierr.New(apierr.MissingCredentialsError, "stored credentials are empty")
	}
	return creds, nil
}

// Save replaces the stored credentials.
func (s *Store) Save(creds Credentials) error {
	if !creds.Valid() {
		return apierr.New(apierr.MissingArgument, "email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, err := s.seal(creds.Email)
	if err != nil {
		return err
	}
	password, err := s.seal(creds.Password)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(sealedFile{Email: email, Password: password}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Purge forgets the stored credentials. Purging when nothing is stored is
// not an error.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("purge credentials: %w", err)
	}
	return nil
}

func (s *Store) seal(plain string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(plain), nil)), nil
}

func (s *Store) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *Store) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

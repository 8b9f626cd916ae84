package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const fileKeyInfo = "tipzed-session-store"

// FileStore persists session values to a single file, encrypted with
// AES-256-GCM under a key derived from the caller's secret. Tokens are
// credentials, so they never touch disk in the clear.
type FileStore struct {
	mu     sync.Mutex
	path   string
	aead   cipher.AEAD
	values map[string]string
}

// NewFileStore opens (or creates) an encrypted store at path. The
// secret must match the one the file was written with.
func NewFileStore(path string, secret []byte) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("[NewFileStore] secret is required")
	}

	aead, err := deriveAEAD(secret)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] derive key")
	}

	s := &FileStore{
		path:   path,
		aead:   aead,
		values: make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] load")
	}
	return s, nil
}

// deriveAEAD stretches the secret into an AES-256 key via HKDF-SHA256.
func deriveAEAD(secret []byte) (cipher.AEAD, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(fileKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Get retrieves a value by key.
func (s *FileStore) Get(key string) (string, error) {
	if key == "" {
		return "", errors.New("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set creates or updates a value and writes the file through.
func (s *FileStore) Set(key, value string) error {
	if key == "" {
		return errors.New("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.persist()
}

// Delete removes a value and writes the file through. Deleting an
// absent key is not an error.
func (s *FileStore) Delete(key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.persist()
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) < s.aead.NonceSize() {
		return errors.New("store file is truncated")
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return errors.Wrap(err, "decrypt store file")
	}
	return json.Unmarshal(plaintext, &s.values)
}

// persist writes the encrypted snapshot. Callers must hold mu.
func (s *FileStore) persist() error {
	plaintext, err := json.Marshal(s.values)
	if err != nil {
		return err
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	ciphertext := s.aead.Seal(nonce, nonce, plaintext, nil)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, ciphertext, 0o600)
}

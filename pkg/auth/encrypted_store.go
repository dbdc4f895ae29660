package auth

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
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	fileVersion = 1
)

// EncryptedFileStore keeps every endpoint's credentials in one AES-GCM sealed
// file. The key is derived from BOORUDL_PASSPHRASE, or from a random
// passphrase saved next to the file on first use.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// sealedFile is the on-disk envelope
type sealedFile struct {
	Version  int       `json:"version"`
	Salt     string    `json:"salt"`
	Sealed   string    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// vault is the decrypted content of a sealedFile
type vault struct {
	salt  []byte
	creds map[string]Credential
}

// NewEncryptedFileStore creates a store backed by path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	passphrase, err := loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store adds or replaces the credentials of cred.Endpoint
func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.Endpoint == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.open()
	if err != nil {
		return err
	}
	v.creds[cred.Endpoint] = *cred
	return e.seal(v)
}

// Retrieve returns the credentials of endpoint
func (e *EncryptedFileStore) Retrieve(endpoint string) (*Credential, error) {
	if endpoint == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.open()
	if err != nil {
		return nil, err
	}
	cred, ok := v.creds[endpoint]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns every stored credential
func (e *EncryptedFileStore) List() ([]*Credential, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.open()
	if err != nil {
		return nil, err
	}
	out := make([]*Credential, 0, len(v.creds))
	for _, cred := range v.creds {
		c := cred
		out = append(out, &c)
	}
	return out, nil
}

// Delete removes the credentials of endpoint. The file is removed together
// with its last entry.
func (e *EncryptedFileStore) Delete(endpoint string) error {
	if endpoint == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.open()
	if err != nil {
		return err
	}
	if _, ok := v.creds[endpoint]; !ok {
		return ErrCredentialsNotFound
	}
	delete(v.creds, endpoint)

	if len(v.creds) == 0 {
		return os.Remove(e.path)
	}
	return e.seal(v)
}

// Exists reports whether endpoint has stored credentials
func (e *EncryptedFileStore) Exists(endpoint string) bool {
	_, err := e.Retrieve(endpoint)
	return err == nil
}

// open reads and decrypts the file. A missing file is an empty vault.
func (e *EncryptedFileStore) open() (*vault, error) {
	content, err := os.ReadFile(e.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &vault{creds: make(map[string]Credential)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var f sealedFile
	if err := json.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if f.Version > fileVersion {
		return nil, fmt.Errorf("unsupported credentials file version %d", f.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(f.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}

	plain, err := decrypt(sealed, e.key(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials (wrong passphrase?): %w", err)
	}

	v := &vault{salt: salt}
	if err := json.Unmarshal(plain, &v.creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if v.creds == nil {
		v.creds = make(map[string]Credential)
	}
	return v, nil
}

// seal encrypts v and replaces the file atomically
func (e *EncryptedFileStore) seal(v *vault) error {
	if len(v.salt) == 0 {
		v.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, v.salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(v.creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	sealed, err := encrypt(plain, e.key(v.salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	content, err := json.MarshalIndent(sealedFile{
		Version:  fileVersion,
		Salt:     base64.StdEncoding.EncodeToString(v.salt),
		Sealed:   base64.StdEncoding.EncodeToString(sealed),
		Modified: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials file: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase prefers BOORUDL_PASSPHRASE, then a saved passphrase file,
// and creates that file when neither exists
func loadPassphrase() (string, error) {
	if pass := os.Getenv("BOORUDL_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	file := filepath.Join(configDir, ".passphrase")

	if content, err := os.ReadFile(file); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(file, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

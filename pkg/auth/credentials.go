package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"boorudl/pkg/booru"
	"boorudl/pkg/logger"
)

// Credential is the API login for one configured endpoint
type Credential struct {
	Endpoint     string    `json:"endpoint"`
	Username     string    `json:"username"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for the credential's endpoint
	Store(cred *Credential) error

	// Retrieve gets credentials for an endpoint name
	Retrieve(endpoint string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes credentials for an endpoint name
	Delete(endpoint string) error

	// Exists checks if credentials exist for an endpoint name
	Exists(endpoint string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Environment variables are read-only and consulted last
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores, in lookup order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Endpoint == "" {
		return errors.New("endpoint name is required")
	}
	if cred.Username == "" {
		return errors.New("username is required")
	}
	if cred.APIKey == "" {
		return errors.New("API key is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(endpoint string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(endpoint); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for endpoint: %s", ErrCredentialsNotFound, endpoint)
}

// List returns all stored credentials from all stores
func (m *Manager) List() ([]*Credential, error) {
	byEndpoint := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			// Use the most recently modified version
			if existing, ok := byEndpoint[cred.Endpoint]; !ok || cred.LastModified.After(existing.LastModified) {
				byEndpoint[cred.Endpoint] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range byEndpoint {
		result = append(result, cred)
	}

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(endpoint string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(endpoint); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for endpoint: %s", ErrCredentialsNotFound, endpoint)
	}

	return nil
}

// Apply fills in credentials for endpoints that have none in the config.
// Credentials from the config file always win.
func (m *Manager) Apply(endpoints []booru.Endpoint, log logger.Logger) []booru.Endpoint {
	if log == nil {
		log = logger.GetLogger()
	}

	out := make([]booru.Endpoint, len(endpoints))
	for i, ep := range endpoints {
		out[i] = ep
		if ep.HasCredentials() {
			continue
		}
		cred, err := m.Retrieve(ep.Name)
		if err != nil {
			continue
		}
		out[i].Username = cred.Username
		out[i].APIKey = cred.APIKey
		log.DebugWithFields("Using stored credentials", map[string]interface{}{
			"endpoint": ep.Name,
			"username": cred.Username,
		})
	}
	return out
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "boorudl")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "boorudl")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "boorudl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "boorudl")
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize creates a copy of the credential with the API key masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		Endpoint:     cred.Endpoint,
		Username:     cred.Username,
		APIKey:       maskString(cred.APIKey),
		LastModified: cred.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

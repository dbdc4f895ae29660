package auth

import (
	"os"
	"strings"
	"time"
)

const (
	envPrefix     = "BOORUDL_"
	envUserSuffix = "_USERNAME"
	envKeySuffix  = "_API_KEY"
)

// EnvironmentStore implements CredentialStore using environment variables of
// the form BOORUDL_<ENDPOINT>_USERNAME and BOORUDL_<ENDPOINT>_API_KEY.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvKey is the variable prefix for an endpoint name, e.g. "my-booru" ->
// "BOORUDL_MY_BOORU"
func EnvKey(endpoint string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	for _, r := range strings.ToUpper(endpoint) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(endpoint string) (*Credential, error) {
	if endpoint == "" {
		return nil, ErrInvalidCredentials
	}

	key := EnvKey(endpoint)
	username := os.Getenv(key + envUserSuffix)
	apiKey := os.Getenv(key + envKeySuffix)
	if username == "" || apiKey == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Credential{
		Endpoint:     endpoint,
		Username:     username,
		APIKey:       apiKey,
		LastModified: time.Now(),
	}, nil
}

// List returns the credentials visible in the environment. Endpoint names
// come back in their variable form, lower-cased.
func (e *EnvironmentStore) List() ([]*Credential, error) {
	var creds []*Credential
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) || !strings.HasSuffix(name, envKeySuffix) {
			continue
		}
		endpoint := strings.TrimSuffix(strings.TrimPrefix(name, envPrefix), envKeySuffix)
		if endpoint == "" {
			continue
		}
		if cred, err := e.Retrieve(strings.ToLower(endpoint)); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(endpoint string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(endpoint string) bool {
	_, err := e.Retrieve(endpoint)
	return err == nil
}

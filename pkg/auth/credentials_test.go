package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"boorudl/pkg/booru"
	"boorudl/pkg/logger"
)

// mockStore keeps credentials in memory and can inject errors
type mockStore struct {
	mu    sync.RWMutex
	creds map[string]*Credential

	storeErr error
	listErr  error
}

func newMockStore() *mockStore {
	return &mockStore{creds: make(map[string]*Credential)}
}

func (m *mockStore) Store(cred *Credential) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cred
	m.creds[cred.Endpoint] = &c
	return nil
}

func (m *mockStore) Retrieve(endpoint string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[endpoint]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockStore) List() ([]*Credential, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Credential
	for _, c := range m.creds {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) Delete(endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[endpoint]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, endpoint)
	return nil
}

func (m *mockStore) Exists(endpoint string) bool {
	_, err := m.Retrieve(endpoint)
	return err == nil
}

func TestManagerLifecycle(t *testing.T) {
	store := newMockStore()
	manager := NewManagerWithStores(store)

	cred := &Credential{Endpoint: "dan", Username: "alice", APIKey: "abcdefghijkl"}
	require.NoError(t, manager.Store(cred))
	assert.False(t, cred.LastModified.IsZero())

	got, err := manager.Retrieve("dan")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "abcdefghijkl", got.APIKey)

	list, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, manager.Delete("dan"))
	_, err = manager.Retrieve("dan")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, manager.Delete("dan"), ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager := NewManagerWithStores(newMockStore())

	assert.Error(t, manager.Store(&Credential{Username: "alice", APIKey: "k"}))
	assert.Error(t, manager.Store(&Credential{Endpoint: "dan", APIKey: "k"}))
	assert.Error(t, manager.Store(&Credential{Endpoint: "dan", Username: "alice"}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := newMockStore()
	broken.storeErr = errors.New("keyring locked")
	fallback := newMockStore()
	manager := NewManagerWithStores(broken, fallback)

	require.NoError(t, manager.Store(&Credential{Endpoint: "gel", Username: "42", APIKey: "key"}))
	assert.True(t, fallback.Exists("gel"))
	assert.False(t, broken.Exists("gel"))
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := newMockStore()
	newer := newMockStore()
	now := time.Now()
	require.NoError(t, older.Store(&Credential{Endpoint: "dan", Username: "old", APIKey: "k", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Credential{Endpoint: "dan", Username: "new", APIKey: "k", LastModified: now}))
	broken := newMockStore()
	broken.listErr = errors.New("boom")

	list, err := NewManagerWithStores(older, broken, newer).List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Username)
}

func TestManagerApply(t *testing.T) {
	store := newMockStore()
	require.NoError(t, store.Store(&Credential{Endpoint: "dan", Username: "alice", APIKey: "stored"}))
	require.NoError(t, store.Store(&Credential{Endpoint: "gel", Username: "bob", APIKey: "stored"}))
	manager := NewManagerWithStores(store)

	endpoints := []booru.Endpoint{
		{Name: "dan"},
		{Name: "gel", Username: "carol", APIKey: "from-config"},
		{Name: "other"},
	}
	out := manager.Apply(endpoints, logger.NewNopLogger())

	assert.Equal(t, "alice", out[0].Username)
	assert.Equal(t, "stored", out[0].APIKey)
	assert.Equal(t, "carol", out[1].Username, "config credentials win")
	assert.False(t, out[2].HasCredentials())
	assert.False(t, endpoints[0].HasCredentials(), "input is not modified")
}

func TestSanitize(t *testing.T) {
	cred := &Credential{Endpoint: "dan", Username: "alice", APIKey: "abcdefghijkl"}
	s := Sanitize(cred)
	assert.Equal(t, "abcd...ijkl", s.APIKey)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "********", Sanitize(&Credential{APIKey: "short"}).APIKey)
	assert.Nil(t, Sanitize(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("BOORUDL_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "creds.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Endpoint: "dan", Username: "alice", APIKey: "very-secret-key"}))
	require.NoError(t, store.Store(&Credential{Endpoint: "gel", Username: "42", APIKey: "other-secret"}))

	got, err := store.Retrieve("dan")
	require.NoError(t, err)
	assert.Equal(t, "very-secret-key", got.APIKey)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("very-secret-key")), "file holds plaintext key")

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// A second store with the same passphrase reads the same file
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	assert.True(t, reopened.Exists("gel"))

	require.NoError(t, store.Delete("dan"))
	require.NoError(t, store.Delete("gel"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is removed with its last credential")
	assert.ErrorIs(t, store.Delete("gel"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")

	t.Setenv("BOORUDL_PASSPHRASE", "right")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Endpoint: "dan", Username: "alice", APIKey: "key"}))

	t.Setenv("BOORUDL_PASSPHRASE", "wrong")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("dan")
	assert.Error(t, err)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("BOORUDL_MY_BOORU_USERNAME", "alice")
	t.Setenv("BOORUDL_MY_BOORU_API_KEY", "env-key")

	store := NewEnvironmentStore()
	assert.Equal(t, "BOORUDL_MY_BOORU", EnvKey("my-booru"))

	cred, err := store.Retrieve("my-booru")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, "env-key", cred.APIKey)
	assert.True(t, store.Exists("my.booru"))
	assert.False(t, store.Exists("other"))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "my_booru", list[0].Endpoint)

	assert.ErrorIs(t, store.Store(&Credential{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("my-booru"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Endpoint: "dan", Username: "alice", APIKey: "kr-key"}))
	assert.True(t, store.Exists("dan"))

	got, err := store.Retrieve("dan")
	require.NoError(t, err)
	assert.Equal(t, "kr-key", got.APIKey)

	require.NoError(t, store.Delete("dan"))
	_, err = store.Retrieve("dan")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Delete("dan"), ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Store(&Credential{}), ErrInvalidCredentials)
}

func TestAPIKeyGuide(t *testing.T) {
	guide := APIKeyGuide(booru.Endpoint{Name: "gel", BaseURL: "https://gelbooru.example", Dialect: booru.DialectGelbooru})
	assert.Contains(t, guide, "https://gelbooru.example/index.php?page=account&s=options")
	assert.Contains(t, guide, "BOORUDL_GEL_API_KEY")
}

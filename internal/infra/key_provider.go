package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

const (
	keyFileName = "store.key"
	keySize     = 32 // 256-bit SQLCipher key

	// StoreKeyEnv supplies the store key (base64) instead of the key file.
	StoreKeyEnv = "WEBMON_STORE_KEY"
)

// FileKeyProvider keeps the store key base64-encoded in a 0600 file next to the database.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return NewFileKeyProviderWithPath(filepath.Join(dataDir, keyFileName))
}

// NewFileKeyProviderWithPath creates a FileKeyProvider reading an explicit key file.
func NewFileKeyProviderWithPath(path string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: path}
}

// GetKey reads and validates the key file. A file other users can read is
// refused: the key would decrypt the stored Gemini API key.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	info, err := os.Stat(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("key file %s is accessible by other users (mode %04o)", p.keyPath, perm)
	}
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return decodeKey(string(encoded))
}

// StoreKey writes key with owner-only permissions, creating the directory if needed.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(p.keyPath, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// KeyExists reports whether the key file is present.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// Path returns the key file location.
func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

// EnvKeyProvider serves a key handed over in the environment. It never writes.
type EnvKeyProvider struct {
	value string
}

// NewEnvKeyProvider wraps a base64 key value.
func NewEnvKeyProvider(value string) *EnvKeyProvider {
	return &EnvKeyProvider{value: value}
}

func (p *EnvKeyProvider) GetKey() ([]byte, error) {
	return decodeKey(p.value)
}

func (p *EnvKeyProvider) StoreKey([]byte) error {
	return fmt.Errorf("store key is supplied by %s and cannot be replaced", StoreKeyEnv)
}

func (p *EnvKeyProvider) KeyExists() bool {
	return strings.TrimSpace(p.value) != ""
}

// StoreKeyProvider picks the key source for dataDir: the environment when
// StoreKeyEnv is set, the key file otherwise.
func StoreKeyProvider(dataDir string) domain.KeyProvider {
	if v := os.Getenv(StoreKeyEnv); v != "" {
		return NewEnvKeyProvider(v)
	}
	return NewFileKeyProvider(dataDir)
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// GenerateKey returns a fresh random store key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the provider's key, generating and storing one on first use.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// OpenStore resolves the store key under dataDir and opens the encrypted store.
func OpenStore(dataDir string) (*EncryptedStore, error) {
	key, err := EnsureKey(StoreKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load store key: %w", err)
	}
	return NewEncryptedStore(dataDir, key)
}

var (
	_ domain.KeyProvider = (*FileKeyProvider)(nil)
	_ domain.KeyProvider = (*EnvKeyProvider)(nil)
)

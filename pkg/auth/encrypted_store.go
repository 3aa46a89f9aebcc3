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
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion    = 2
	vaultSaltSize   = 32
	vaultKeySize    = 32
	vaultIterations = 100000
	passphraseEnv   = "DESCRIBER_PASSPHRASE"
	passphraseFile  = ".passphrase"
)

// ErrVaultLocked means the passphrase does not open the account vault
var ErrVaultLocked = errors.New("account vault passphrase does not match")

// EncryptedFileStore keeps the OAuth1 tokens of every bot account in a single
// vault file. The account map is sealed with AES-GCM under a PBKDF2 key.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// vaultFile is the on-disk layout. Byte slices are base64 in JSON.
type vaultFile struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore opens the vault at path. The passphrase comes from
// DESCRIBER_PASSPHRASE, or from a generated .passphrase file next to the vault.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	passphrase, err := vaultPassphrase(filepath.Join(filepath.Dir(path), passphraseFile))
	if err != nil {
		return nil, fmt.Errorf("account vault passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// NewEncryptedFileStoreWithPassphrase opens the vault at path with an explicit passphrase
func NewEncryptedFileStoreWithPassphrase(path, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("account vault needs a passphrase")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating account vault directory: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.ScreenName == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	salt, accounts, err := e.open()
	switch {
	case errors.Is(err, os.ErrNotExist):
		accounts = make(map[string]Account)
	case err != nil:
		return err
	}

	accounts[account.ScreenName] = *account
	return e.seal(salt, accounts)
}

func (e *EncryptedFileStore) Retrieve(screenName string) (*Account, error) {
	if screenName == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, accounts, err := e.open()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, err
	}

	account, ok := accounts[screenName]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, accounts, err := e.open()
	if errors.Is(err, os.ErrNotExist) {
		return []*Account{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]*Account, 0, len(accounts))
	for name := range accounts {
		account := accounts[name]
		out = append(out, &account)
	}
	return out, nil
}

// Delete drops screenName from the vault. The vault file goes away with its
// last account.
func (e *EncryptedFileStore) Delete(screenName string) error {
	if screenName == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	salt, accounts, err := e.open()
	if errors.Is(err, os.ErrNotExist) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return err
	}
	if _, ok := accounts[screenName]; !ok {
		return ErrCredentialsNotFound
	}

	delete(accounts, screenName)
	if len(accounts) == 0 {
		return os.Remove(e.path)
	}
	return e.seal(salt, accounts)
}

func (e *EncryptedFileStore) Exists(screenName string) bool {
	account, err := e.Retrieve(screenName)
	return err == nil && account != nil
}

// open reads the vault and unseals its accounts. A missing vault surfaces as
// os.ErrNotExist.
func (e *EncryptedFileStore) open() ([]byte, map[string]Account, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var vf vaultFile
	if err := json.Unmarshal(content, &vf); err != nil {
		return nil, nil, fmt.Errorf("account vault %s is corrupt: %w", e.path, err)
	}
	if len(vf.Salt) == 0 || len(vf.Sealed) == 0 {
		return nil, nil, fmt.Errorf("account vault %s is missing its salt or payload", e.path)
	}

	plain, err := unseal(vf.Sealed, e.key(vf.Salt))
	if err != nil {
		return nil, nil, fmt.Errorf("%w (%s)", ErrVaultLocked, e.path)
	}

	accounts := make(map[string]Account)
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, nil, fmt.Errorf("account vault %s holds unreadable accounts: %w", e.path, err)
	}
	return vf.Salt, accounts, nil
}

// seal writes accounts to the vault, keeping salt when the vault already has one
func (e *EncryptedFileStore) seal(salt []byte, accounts map[string]Account) error {
	if len(salt) == 0 {
		salt = make([]byte, vaultSaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("salting account vault: %w", err)
		}
	}

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encoding bot accounts: %w", err)
	}
	sealed, err := sealGCM(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("sealing account vault: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:  vaultVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeVault(e.path, content)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, vaultIterations, vaultKeySize, sha256.New)
}

// writeVault replaces path atomically with a 0600 file
func writeVault(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vault-*")
	if err != nil {
		return fmt.Errorf("writing account vault: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing account vault: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing account vault: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing account vault: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing account vault: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// vaultPassphrase prefers the environment, then the passphrase file, and
// creates that file on first use
func vaultPassphrase(file string) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}
	if content, err := os.ReadFile(file); err == nil && len(content) > 0 {
		return string(content), nil
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	pass := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(file, []byte(pass), 0600); err != nil {
		return "", err
	}
	return pass, nil
}

// sealGCM encrypts plain with AES-GCM; the nonce leads the output
func sealGCM(plain, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func unseal(sealed, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("sealed payload shorter than its nonce")
	}
	return aead.Open(nil, sealed[:n], sealed[n:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

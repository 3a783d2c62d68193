// Package account manages ActiveSync account configurations and their
// secrets. Configuration lives in accounts.yml under the data directory;
// passwords and certificate passphrases live in the OS keyring.
package account

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dedovmosol/iwomail/internal/model"
)

const accountsFileName = "accounts.yml"

// Store manages account configurations.
type Store struct {
	mu      sync.RWMutex
	dataDir string
}

// NewStore creates an account store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// List returns all configured accounts.
func (s *Store) List() ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Get returns a single account by ID.
func (s *Store) Get(accountID string) (*model.Account, error) {
	accounts, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ID == accountID {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("account %s not found", accountID)
}

// Create adds a new account, filling in the generated ID and device ID.
func (s *Store) Create(acct model.Account) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, _ := s.load()

	if acct.ID == "" {
		acct.ID = model.NewID()
	}
	if acct.DeviceID == "" {
		acct.DeviceID = NewDeviceID()
	}
	if acct.TLS == "" {
		acct.TLS = model.TLSModeTLS
	}
	if acct.Auth == "" {
		acct.Auth = model.AuthModeBasic
	}
	if acct.Sync.Interval == "" {
		acct.Sync.Interval = "5m"
	}
	acct.Sync.Enabled = true

	accounts = append(accounts, acct)
	if err := s.save(accounts); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Update replaces an existing account configuration.
func (s *Store) Update(acct model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}

	found := false
	for i, a := range accounts {
		if a.ID == acct.ID {
			accounts[i] = acct
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("account %s not found", acct.ID)
	}

	return s.save(accounts)
}

// SetPolicyKey persists the provisioning token acknowledged for an account.
func (s *Store) SetPolicyKey(accountID, policyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}
	for i, a := range accounts {
		if a.ID == accountID {
			accounts[i].PolicyKey = policyKey
			return s.save(accounts)
		}
	}
	return fmt.Errorf("account %s not found", accountID)
}

// Delete removes an account configuration (does NOT delete mirrored data).
func (s *Store) Delete(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}

	filtered := make([]model.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.ID != accountID {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == len(accounts) {
		return fmt.Errorf("account %s not found", accountID)
	}

	return s.save(filtered)
}

// NewDeviceID generates the stable client identifier sent to the server.
// Servers reject IDs over 32 characters, so a 16-byte hex string fits.
func NewDeviceID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "IWO" + hex.EncodeToString([]byte(model.NewID()))[:29]
	}
	return hex.EncodeToString(b[:])
}

func (s *Store) accountsPath() string {
	return filepath.Join(s.dataDir, accountsFileName)
}

func (s *Store) load() ([]model.Account, error) {
	path := s.accountsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var file model.AccountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.Accounts, nil
}

func (s *Store) save(accounts []model.Account) error {
	path := s.accountsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	file := model.AccountsFile{Accounts: accounts}
	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

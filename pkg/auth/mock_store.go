package auth

import (
	"sync"
)

// MockStore is an in-memory CredentialStore with injectable errors
type MockStore struct {
	accounts map[string]*Account
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Account),
	}
}

// Store saves a copy of account
func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if account == nil || account.ScreenName == "" {
		return ErrInvalidCredentials
	}

	accountCopy := *account
	m.accounts[account.ScreenName] = &accountCopy

	return nil
}

// Retrieve returns a copy of the stored account
func (m *MockStore) Retrieve(screenName string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if screenName == "" {
		return nil, ErrInvalidCredentials
	}

	account, exists := m.accounts[screenName]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	accountCopy := *account
	return &accountCopy, nil
}

// List returns copies of all stored accounts
func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		accountCopy := *account
		accounts = append(accounts, &accountCopy)
	}

	return accounts, nil
}

// Delete removes the stored account
func (m *MockStore) Delete(screenName string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if screenName == "" {
		return ErrInvalidCredentials
	}

	if _, exists := m.accounts[screenName]; !exists {
		return ErrCredentialsNotFound
	}

	delete(m.accounts, screenName)
	return nil
}

// Exists checks if credentials exist in the mock store
func (m *MockStore) Exists(screenName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.accounts[screenName]
	return exists
}

// Count returns the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.accounts)
}

// NewMockManager creates a Manager over a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return NewManagerWithStores(mockStore), mockStore
}

package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvScreenName     = "DESCRIBER_TWITTER_ACCOUNT"
	EnvConsumerKey    = "DESCRIBER_CONSUMER_KEY"
	EnvConsumerSecret = "DESCRIBER_CONSUMER_SECRET"
	EnvAccessToken    = "DESCRIBER_ACCESS_TOKEN"
	EnvAccessSecret   = "DESCRIBER_ACCESS_SECRET"
)

// EnvironmentStore is a read-only CredentialStore over environment variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credentials. A non-empty screenName must
// match DESCRIBER_TWITTER_ACCOUNT when that variable is set.
func (e *EnvironmentStore) Retrieve(screenName string) (*Account, error) {
	account := &Account{
		ScreenName:     os.Getenv(EnvScreenName),
		ConsumerKey:    os.Getenv(EnvConsumerKey),
		ConsumerSecret: os.Getenv(EnvConsumerSecret),
		AccessToken:    os.Getenv(EnvAccessToken),
		AccessSecret:   os.Getenv(EnvAccessSecret),
		LastModified:   time.Now(),
	}

	if account.ConsumerKey == "" || account.ConsumerSecret == "" || account.AccessToken == "" || account.AccessSecret == "" {
		return nil, ErrCredentialsNotFound
	}

	switch {
	case account.ScreenName == "" && screenName == "":
		account.ScreenName = "default"
	case account.ScreenName == "":
		account.ScreenName = screenName
	case screenName != "" && screenName != account.ScreenName:
		return nil, ErrCredentialsNotFound
	}

	return account, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(screenName string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for screenName
func (e *EnvironmentStore) Exists(screenName string) bool {
	_, err := e.Retrieve(screenName)
	return err == nil
}

package secret

import "os"

// Store provides read access to sensitive values such as database
// passwords. Config files only ever name a key; the value stays in the
// store.
type Store interface {
	// Get retrieves the secret value for the given key.
	// Returns nil and nil error if key does not exist.
	Get(key string) ([]byte, error)
}

// EnvStore reads secrets from environment variables.
type EnvStore struct{}

func (EnvStore) Get(key string) ([]byte, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

// Lookup returns the secret stored under key as a string. An empty key
// yields an empty secret.
func Lookup(s Store, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

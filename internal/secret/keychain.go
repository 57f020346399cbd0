package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const keychainService = "gdpetl"

// KeychainStore implements Store using the macOS Keychain via the
// `security` CLI tool. Entries are generic passwords of service "gdpetl"
// whose account is the key.
type KeychainStore struct {
	bin string
}

// NewKeychainStore creates a new KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{bin: "security"}
}

// Get retrieves a secret from the macOS Keychain.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	cmd := exec.Command(k.bin, "find-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w", // output only the password
	)
	out, err := cmd.Output()
	if err != nil {
		// "security" returns exit code 44 when item not found
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

package redis

import "fmt"

const (
	// KeyPrefixSnapshot is the prefix for per-account snapshot keys
	KeyPrefixSnapshot = "marksync:snapshot:"
	// KeyPrefixVersions is the prefix for per-account version history lists
	KeyPrefixVersions = "marksync:versions:"
	// KeyPrefixState is the prefix for agent sync state keys
	KeyPrefixState = "marksync:state:"
	// KeyAllAccounts is the key for the set of all accounts holding a snapshot
	KeyAllAccounts = "marksync:accounts:all"
)

// SnapshotKey returns the Redis key for an account's snapshot
func SnapshotKey(account string) string {
	return KeyPrefixSnapshot + account
}

// VersionsKey returns the Redis key for an account's version history
func VersionsKey(account string) string {
	return KeyPrefixVersions + account
}

// StateKey returns the Redis key for an agent's sync state
func StateKey(nodeID string) string {
	return KeyPrefixState + nodeID
}

// AllAccountsKey returns the key for the set of all accounts
func AllAccountsKey() string {
	return KeyAllAccounts
}

// ExtractAccount extracts the account from a snapshot key
func ExtractAccount(key string) (string, error) {
	if len(key) <= len(KeyPrefixSnapshot) || key[:len(KeyPrefixSnapshot)] != KeyPrefixSnapshot {
		return "", fmt.Errorf("invalid snapshot key: %s", key)
	}
	return key[len(KeyPrefixSnapshot):], nil
}

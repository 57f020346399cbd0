package domain

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// DatabaseConnection holds the metadata for connecting to the target store.
// The password is never stored in config; it is read from the environment
// variable named by PasswordEnv or, failing that, from the keychain entry
// named by PasswordKeychain.
type DatabaseConnection struct {
	Driver      DatabaseDriver `json:"driver"`
	Host        string         `json:"host"`     // hostname or file path (sqlite)
	Port        int            `json:"port"`     // 0 for sqlite
	Database    string         `json:"database"` // db name or empty for sqlite
	Username    string         `json:"username"`
	PasswordEnv string         `json:"passwordEnv"`
	SSLMode     string         `json:"sslMode"`

	PasswordKeychain string `json:"passwordKeychain,omitempty"`
}

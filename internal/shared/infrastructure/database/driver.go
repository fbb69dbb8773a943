package database

import "strings"

// Driver represents a database backend type.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// String returns the string representation of the driver.
func (d Driver) String() string {
	return string(d)
}

// DetectDriver picks the backend from a connection string. An empty URL
// selects SQLite so the CLI works without any setup.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}

	if strings.HasPrefix(url, "sqlite://") ||
		strings.HasPrefix(url, "file:") ||
		strings.HasSuffix(url, ".db") ||
		strings.HasSuffix(url, ".sqlite") ||
		strings.HasSuffix(url, ".sqlite3") {
		return DriverSQLite
	}

	return DriverPostgres
}

// ParseDriver resolves an explicit driver name, falling back to detection
// from url when name is empty or "auto".
func ParseDriver(name, url string) Driver {
	switch Driver(strings.ToLower(name)) {
	case DriverPostgres:
		return DriverPostgres
	case DriverSQLite:
		return DriverSQLite
	default:
		return DetectDriver(url)
	}
}

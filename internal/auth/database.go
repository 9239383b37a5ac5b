package auth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO
)

// AppAuthStatus is the signed-in identity recorded by the Antigravity
// desktop app in its state database. Read-only; used by the accounts CLI to
// tell the operator which Google account the local editor is using.
type AppAuthStatus struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	APIKey string `json:"apiKey"`
}

// DefaultStateDBPath returns the platform path of the Antigravity desktop
// app state database.
func DefaultStateDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Antigravity", "User", "globalStorage", "state.vscdb")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Antigravity", "User", "globalStorage", "state.vscdb")
	default:
		return filepath.Join(home, ".config", "Antigravity", "User", "globalStorage", "state.vscdb")
	}
}

// ReadAppAuthStatus reads the signed-in identity from the desktop app state
// database at dbPath (DefaultStateDBPath when empty).
func ReadAppAuthStatus(dbPath string) (*AppAuthStatus, error) {
	if dbPath == "" {
		dbPath = DefaultStateDBPath()
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("state database not found at %s (is Antigravity installed and signed in?)", dbPath)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	defer db.Close()

	var value string
	err = db.QueryRow("SELECT value FROM ItemTable WHERE key = 'antigravityAuthStatus'").Scan(&value)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no auth status recorded in %s", dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("querying state database: %w", err)
	}

	var status AppAuthStatus
	if err := json.Unmarshal([]byte(value), &status); err != nil {
		return nil, fmt.Errorf("parsing auth status: %w", err)
	}
	if status.Email == "" {
		return nil, fmt.Errorf("auth status carries no email")
	}
	return &status, nil
}

// StateDBAccessible reports whether the desktop app state database exists
// and opens.
func StateDBAccessible(dbPath string) bool {
	if dbPath == "" {
		dbPath = DefaultStateDBPath()
	}
	if _, err := os.Stat(dbPath); err != nil {
		return false
	}
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return false
	}
	defer db.Close()
	return db.Ping() == nil
}

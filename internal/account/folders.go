package account

import (
	"os"
	"path/filepath"
)

// CreateUserFolders creates the per-user folder pair. Each user has one
// folder named after the email, holding a data and a model subfolder.
// Creation is idempotent so a retried confirmation never fails here.
func CreateUserFolders(basePath, email string) error {
	for _, sub := range []string{"data", "model"} {
		if err := os.MkdirAll(filepath.Join(basePath, email, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// UserDataFile is the single upload slot inside a user's data folder.
func UserDataFile(basePath, email string) string {
	return filepath.Join(basePath, email, "data", "data0.csv")
}

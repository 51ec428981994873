package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/filex"
)

const filePrefix = "buddy-inbox-backup-"

// FileName is the name an export taken at now is saved under.
func FileName(now time.Time) string {
	return filePrefix + strconv.FormatInt(now.UnixMilli(), 10) + ".json"
}

// WriteFile saves an export into dir, creating it if needed, and returns
// the file path.
func WriteFile(dir string, now time.Time, data []byte) (string, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(abs, FileName(now))
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return data, nil
}

package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeArchive stores one archive as <dir>/<pageID>.json via tmp+rename.
// The file is always a complete run; readers never observe a partial write.
func writeArchive(dir string, a *Archive) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := ArchivePath(dir, a.PageID)
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadArchive loads a page's archive, returning nil when none exists yet.
func ReadArchive(dir, pageID string) (*Archive, error) {
	b, err := os.ReadFile(ArchivePath(dir, pageID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var a Archive
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("parse archive for %s: %w", pageID, err)
	}
	return &a, nil
}

// ArchivePath maps a page ID to its archive file, flattening path
// separators so page IDs with slashes stay inside dir.
func ArchivePath(dir, pageID string) string {
	safe := strings.ReplaceAll(pageID, string(os.PathSeparator), "__")
	safe = strings.ReplaceAll(safe, "/", "__")
	return filepath.Join(dir, safe+".json")
}

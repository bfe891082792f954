package filecache

import (
	"fmt"
	"path"
	"strings"
	"time"

	"dmsiq/internal/utils"
)

const (
	fallbackFileStem = "file"
	fallbackOwner    = "unknown"
)

// GenerateTargetPath returns the deterministic local location of a remote file:
// /tenders/YYYY/MM/DD/{owner}/files/{sanitized filename}
//
// Both owner and filename are sanitized. A name that sanitizes to nothing becomes
// "file" (keeping its extension), so the path never ends in a bare directory.
func GenerateTargetPath(ownerID, filename string, at time.Time) string {
	owner := utils.SanitizePathComponent(ownerID)
	if owner == "" {
		owner = fallbackOwner
	}

	name := utils.SanitizeFilename(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if ext := path.Ext(name); name == ext {
		name = fallbackFileStem + ext
	}

	return fmt.Sprintf("/tenders/%04d/%02d/%02d/%s/files/%s",
		at.Year(), int(at.Month()), at.Day(), owner, name)
}

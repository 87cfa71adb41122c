package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PhotoStoragePath builds the object key {owner}/{plant}/{unix-millis}-{uuid}.{ext}.
func PhotoStoragePath(uid string, plantId string, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%s.%s", uid, plantId, now.UnixMilli(), uuid.NewString(), ext)
}

// SafeRedirect accepts only same-origin absolute paths.
func SafeRedirect(target string, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

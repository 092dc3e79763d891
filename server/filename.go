package server

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
var repeatedUnderscores = regexp.MustCompile(`_+`)

// sanitizeFilename keeps only characters safe for object-store keys.
func sanitizeFilename(filename string) string {
	sanitized := unsafeChars.ReplaceAllString(filename, "_")
	sanitized = repeatedUnderscores.ReplaceAllString(sanitized, "_")
	return strings.Trim(sanitized, "_")
}

// uniqueStorageKey derives a collision-free storage key from the uploaded
// filename so re-uploads never overwrite earlier blobs.
func uniqueStorageKey(filename string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		name = "uploaded_file"
	}

	base := name
	ext := ""
	if idx := strings.LastIndex(name, "."); idx > 0 {
		base = name[:idx]
		ext = name[idx:]
	}

	timestamp := time.Now().Format("20060102_150405")
	uniqueID := uuid.New().String()[:8]

	return fmt.Sprintf("%s_%s_%s%s", base, timestamp, uniqueID, ext)
}

// storageKey extracts the object key from an s3://bucket/key locator.
func storageKey(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid storage path: %v", err)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || key == "" {
		return "", fmt.Errorf("invalid storage path %q", locator)
	}

	return key, nil
}

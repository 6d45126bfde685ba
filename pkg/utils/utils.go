package utils

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewId row primary key / run id
func NewId() string {
	return uuid.NewString()
}

// IsId check s is a canonical uuid
func IsId(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func TimestampS() int64 {
	return time.Now().Unix()
}

func String(s string) *string {
	return &s
}

func Int(v int) *int {
	return &v
}

// SafeFileName strip directories and characters unsafe for object keys
func SafeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

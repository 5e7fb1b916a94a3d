package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a 32-char hex id suitable for request correlation.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

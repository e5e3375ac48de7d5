// Package instance names the running process in logs and lock ownership.
package instance

import (
	"os"
	"strings"
)

// GetID returns CRAFTMART_WORKER_ID, falling back to the hostname and then
// to "worker-0".
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("CRAFTMART_WORKER_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}

// Package instance names the running process in logs and lease tokens.
package instance

import (
	"fmt"
	"os"
	"strings"
)

const envInstanceID = "MARKET_INSTANCE_ID"

// ID returns MARKET_INSTANCE_ID when set, otherwise "<hostname>-<pid>".
func ID() string {
	if id := strings.TrimSpace(os.Getenv(envInstanceID)); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// Package gcp holds the pieces every Google Cloud client here shares:
// credential options and resource naming.
package gcp

import (
	"fmt"
	"strings"

	"google.golang.org/api/option"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

// ClientOptions prefers inline credentials over a key file and falls back to
// application default credentials when neither is set.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.ApplicationCredentials)}
	}
	return nil
}

// ResourceName expands a short id into projects/<project>/<collection>/<id>.
// Already qualified names pass through; blank input yields "".
func ResourceName(project, collection, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+collection+"/") {
		return n
	}
	p := strings.TrimSpace(project)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, collection, n)
}

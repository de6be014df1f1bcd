package ldapfetch

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// getSecret reads a secret from the environment variable env, or from the
// file named by env_FILE when env is unset. The variable wins when both are
// set.
func getSecret(env string) string {
	if value := os.Getenv(env); value != "" {
		return value
	}

	file := os.Getenv(env + "_FILE")
	if file == "" {
		return ""
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.WithError(err).Warnf("unable to read %s_FILE", env)
		return ""
	}
	return strings.TrimSpace(string(data))
}

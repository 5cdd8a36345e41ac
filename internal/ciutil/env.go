package ciutil

import (
	"os"
	"strings"
)

// Environment variables consulted by this package.
const (
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	// EnvTestDBURL is the preferred name for the integration test database.
	EnvTestDBURL = "TASKTRACK_TEST_DB_URL"
	// EnvDatabaseURL is the application setting, used as a fallback.
	EnvDatabaseURL = "TASKTRACK_DATABASE_URL"
	// EnvGenericDBURL is the conventional name many CI services export.
	EnvGenericDBURL = "DATABASE_URL"
)

// IsCI reports whether the process runs under a known CI provider.
func IsCI() bool {
	for _, key := range []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvCircleCI} {
		if v := os.Getenv(key); v != "" && !strings.EqualFold(v, "false") {
			return true
		}
	}
	return false
}

// DatabaseURL returns the first non-empty test database URL, checking
// EnvTestDBURL, EnvDatabaseURL and EnvGenericDBURL in that order.
func DatabaseURL() string {
	for _, key := range []string{EnvTestDBURL, EnvDatabaseURL, EnvGenericDBURL} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

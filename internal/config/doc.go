// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, an optional config file). It provides
// type-safe access to application settings needed by different components while keeping
// configuration details separate from business logic.
//
// Every setting can be supplied as TASKFLOW_<SECTION>_<KEY>. The unprefixed names
// used by existing deployments (PORT, KEYCLOAK_URL, SESSION_SECRET, ...) are accepted
// as well; the prefixed form wins when both are set.
package config

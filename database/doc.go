// Package database provides the Bun-backed SQL client behind repositories,
// together with connection management, the object cache wiring,
// configuration, query hooks, table creation for registered models, health
// checks and SQL error classification.
package database

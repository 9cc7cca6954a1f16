// Package metastore persists fetched gallery metadata in SQLite so reruns and
// retries do not hit the remote provider again.
//
// The schema is embedded and versioned; a database written by a different
// schema version is rejected with ErrSchemaMismatch instead of migrated.
// CachingProvider layers the store in front of any metadata.Provider.
package metastore

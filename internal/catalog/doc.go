// Package catalog persists the record of every media file the pipeline has
// seen and drives its processing lifecycle.
//
// The Store manages the SQLite database, schema initialization, and the
// guarded state transitions that give the pipeline its exactly-once
// semantics: Register admits a path for processing only when no equal
// fingerprint is already queued, transcribing, or committed, and every Mark*
// transition is a no-op when the caller's fingerprint no longer matches the
// record (the file changed while the job was in flight).
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add states or columns, update schema.sql and bump schemaVersion.
package catalog

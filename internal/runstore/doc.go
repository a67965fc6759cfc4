// Package runstore keeps a SQLite history of pipeline runs and their stage
// results so past runs can be listed and inspected from the CLI.
//
// The store is a pipeline.Recorder: the orchestrator hands it every finished
// report. Full reports live in the artifact store; this database holds the
// summary rows plus the artifact identifier needed to fetch them.
//
// Schema changes bump schemaVersion in schema.go; users delete runs.db to
// adopt the new schema.
package runstore

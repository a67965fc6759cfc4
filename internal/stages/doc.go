// Package stages provides the reference stage handlers wired by pipeline
// manifests: fetch, extract, normalize, validate and notify.
//
// Handlers communicate through well-known payload keys:
//
//	source      input identifier read by fetch
//	record      raw record written by fetch
//	fetch       provenance of the record (url, fixture flag, time)
//	fields      extracted fields, rewritten in place by normalize
//	validation  non-fatal issues reported by validate
//	notified_at set by notify after the webhook accepts the message
//
// Each handler returns a new payload and never mutates its input.
package stages

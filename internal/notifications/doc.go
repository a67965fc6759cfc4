// Package notifications delivers pipeline events to an operator webhook.
//
// NewService posts JSON messages to the webhook configured in config.toml and
// degrades to a no-op when none is set. Event types cover the few milestones
// operators care about so stage handlers and the CLI emit consistent messages
// without duplicating HTTP glue. Title, Tags and Priority headers are also set
// so ntfy-style endpoints render the message without a body parser.
package notifications

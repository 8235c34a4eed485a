// Package internal contains the core implementation packages for shopfront.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the shopfront CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: Configuration management with validation and security
//   - content: Blog collection loading from Markdown front matter
//   - errors: Structured site errors and the dev server error overlay
//   - feed: RSS 2.0 feed generation
//   - form: Contact form validation and the submission state machine
//   - inbox: SQLite store behind the local form relay
//   - logging: Structured logging on log/slog
//   - ogimage: 1200x630 social preview PNG rendering
//   - ratelimit: Sliding window rate limiting, single and per key
//   - relay: HTTP client for hosted form relays
//   - server: Development server, live reload, and local relay
//   - site: Build orchestration and build metrics
//   - validation: URL, slug, path, and origin validation
//   - version: Build identity
//   - watcher: File system monitoring with debouncing
//
// # Inter-Package Communication
//
//   - site loads posts through content and writes feed and ogimage output
//   - form validates input and hands a Payload to a Submitter, either a
//     relay.Client or the server's local relay
//   - server rebuilds through site when watcher reports content changes and
//     stores relayed submissions in inbox
//
// # Security Considerations
//
//   - Config package validates all configuration inputs
//   - Server package validates request origins and rate limits the contact
//     endpoint per client
//   - Form input is sanitized before it is relayed or stored
//   - Relay access keys are masked in logs
package internal

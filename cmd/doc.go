// Package cmd provides the command-line interface for shopfront.
//
// This package implements all CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - build: Write the RSS feed and the social preview images
//   - feed: Write only the RSS feed
//   - og: Render preview images, or a single image for any title
//   - serve: Start the development server with live reload
//   - validate: Check the configuration, the posts, or one form value
//   - submit: Send a test contact form submission to the relay
//   - inbox: Read and prune the local relay inbox
//   - version: Show build information
//
// # Command Examples
//
//	// Production build, then one that includes drafts
//	shopfront build
//	shopfront build --drafts
//
//	// Start development server
//	shopfront serve --port 3000 --open
//
//	// Check a form value
//	shopfront validate field email jane@example.com
//
//	// Exercise the relay end to end
//	shopfront submit --name "Jane Doe" --email jane@example.com --message "Hello there"
//	shopfront inbox list
//
// # Configuration
//
// Settings are resolved with clear precedence:
//
//  1. Command-line flags (--port, --production, etc.)
//  2. Environment variables following SHOPFRONT_<SECTION>_<OPTION>, for
//     example SHOPFRONT_SERVER_PORT or SHOPFRONT_FORM_ACCESS_KEY
//  3. The configuration file: --config, SHOPFRONT_CONFIG_FILE, or
//     .shopfront.yml in the working directory
//  4. Built-in defaults
//
// # Security Considerations
//
// Configured paths are validated against traversal before use, form input is
// stripped of control characters before it reaches the relay, and the relay
// access key is masked in logs.
package cmd

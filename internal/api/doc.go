// Package api exposes the caller-facing HTTP interface: starting and
// resuming crawls, batch and sitemap-driven runs, and history inspection.
package api

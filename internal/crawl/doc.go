// Package crawl defines the core types and interfaces for the site crawler.
// It includes the durable crawl session, per-page results, and the
// collaborator contracts the scheduler is wired against.
package crawl

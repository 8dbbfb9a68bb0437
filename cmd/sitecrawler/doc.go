// Command sitecrawler runs the resumable site crawler service: an HTTP API
// in front of the batched crawl scheduler, with durable session state and an
// append-only page history.
package main

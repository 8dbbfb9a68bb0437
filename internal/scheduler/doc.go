// Package scheduler implements the crawl state machine: a resumable,
// rate-limited, batched breadth-first traversal over a durable session.
//
// The scheduler processes one URL at a time, fully serialized. It suspends at
// exactly two points, the inter-request delay and the inter-batch pause, and
// persists the session after every state-changing step so a process restart
// can resume with at most the in-flight fetch lost.
package scheduler

// ABOUTME: Package correlation pairs inbound HTTP requests with bus responses.
// ABOUTME: Documentation for the Handle and Table types.

// Package correlation holds the pending-request bookkeeping that lets a
// synchronous HTTP handler wait for a response produced asynchronously on the
// message bus.
//
// # Overview
//
// Each inbound request gets a fresh id and a single-assignment [Handle] via
// [Table.Create]. The id travels over the bus as the conversation key. When a
// response for that key comes back, [Table.Resolve] removes the entry and
// fulfills the handle in one step, waking the waiting handler.
//
// # Exit Paths
//
// An entry leaves the table exactly once, through whichever of these fires
// first:
//
//   - [Table.Resolve] when the response arrives
//   - [Table.Remove] when the handler times out or fails to publish
//   - [Table.DrainAll] at shutdown, after which the caller cancels each handle
//
// Once removed, an id is gone for good. Resolving it again returns false and
// changes nothing.
//
// # Thread Safety
//
// Table and Handle are safe for concurrent use. Every table mutation happens
// under a single mutex, so inserts, resolves, removes and drains never
// interleave partially.
package correlation

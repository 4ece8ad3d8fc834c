// Package download orchestrates mirroring a game library to disk.
//
// # Manager
//
// The Manager drives the whole process for each game yielded by a
// Source:
//
//  1. Resolve the filter set once per game (platform filter, two-pass
//     language fallback, exclusion veto)
//  2. Decide skip / resume / fresh download per file from what is
//     already on disk
//  3. Stream the file through the transfer engine, wrapped in the
//     retry coordinator, hashing bytes as they are written
//  4. Verify the digest against the catalog hash and warn on mismatch
//  5. Write the .md5 sidecar next to the file when requested
//
// # Per-file outcome
//
// Every file ends in exactly one of three states: Completed, Skipped
// (with a reason) or Failed (with an error). Skips are normal control
// flow, never failures; a skip inside a retried transfer does not
// consume retry budget.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives
// ProgressEvent values; byte-level transfer progress goes to a
// separate hook so a UI can render live per-file bars.
//
// # Resume safety
//
// A partial file is only resumed when the catalog declares a hash:
// the existing prefix is re-read through the hash context before new
// bytes are appended, so a corrupt prefix is always detected at the
// final verification step. Without a declared hash there is nothing to
// validate the prefix against and the file is rewritten from scratch.
package download

// Package transfer performs single resumable HTTP downloads.
//
// The Engine is pure transport: it produces a stream of bytes with
// progress callbacks and leaves writing to disk and hash verification
// to its caller. A download can start at a byte offset (resume), in
// which case a range request is issued and the server must answer with
// partial content beginning exactly at that offset.
//
// # Idle timeout
//
// Each read from the stream is guarded by an idle timeout: if no bytes
// arrive within the configured window, the stream fails with an error
// matching ErrTimeout. Timeouts are retryable by the caller; the retry
// delay and the idle timeout are independent clocks.
//
// # Authentication
//
// A TokenSource supplies the bearer token attached to every request.
// Token refresh and expiry live entirely behind that interface.
package transfer

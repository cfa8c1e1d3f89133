package update

import "context"

// Callback receives the events of one transport fetch.
//
// A transport calls OnStart once, then OnProgress zero or more times, then
// exactly one of OnFinish, OnError or OnCancel. Nothing follows the
// terminal call. A total of zero or less means the size is unknown.
type Callback interface {
	OnStart(url string)
	OnProgress(progress, total int64)
	OnFinish(file string)
	OnError(err error)
	OnCancel()
}

// Transport fetches a remote artifact into a local file.
type Transport interface {
	// Download fetches url into dest. It may return before the fetch
	// completes; outcomes are reported through cb only.
	Download(ctx context.Context, url, dest string, headers map[string]string, cb Callback)

	// Cancel aborts the in-flight fetch, which then reports OnCancel.
	// It is a no-op when nothing is in flight.
	Cancel()
}

// Package idxprovider implements the listing feed client. Requests are paced
// by a token bucket, retried with backoff on throttling and server errors,
// and decoded leniently so one malformed record does not fail its page.
package idxprovider

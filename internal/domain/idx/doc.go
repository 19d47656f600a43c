// Package idx holds the sync side of the listing pipeline: the SyncRun
// audit record, the provider contract the sync engine pages through and
// the repository that serves as the single source of truth for whether
// a sync is running.
package idx

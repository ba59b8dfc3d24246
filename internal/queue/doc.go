// Package queue persists upload queue items in SQLite and enforces the
// monotonic status lifecycle. The schema for the upload_queue table and the
// read-only listings table lives here; dispatch and scheduling logic live
// in their own packages.
package queue

// Package storage keeps a history of finished command runs.
//
// Only run metadata is stored. Schedules are never persisted: every start
// re-reads the directive file.
package storage

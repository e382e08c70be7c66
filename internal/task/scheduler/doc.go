// Package scheduler turns parsed directives into timer triggers.
//
// Execution is delegated to internal/task/engine. The scheduler is responsible only for:
//   - computing the delay / interval of each directive
//   - arming timers on an injectable clock
//   - enqueueing one task per firing into the engine
package scheduler

// Package launcher starts and stops the engine development environment.
//
// A Launcher has two terminal behaviours:
//   - Stop: run the teardown ("compose down --remove-orphans") once.
//   - Start: resolve the engine tag, run the checks, register teardown as
//     a shutdown hook and run "compose up". A failed "up" runs teardown
//     before the error is returned, so no half-started containers are
//     left behind.
//
// Teardown is never called directly. It is registered with a Shutdown
// registry (lifecycle.Lifecycle in production) whose once-only semantics
// guarantee it runs at most once however many exit paths fire.
package launcher

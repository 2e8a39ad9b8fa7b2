// Package lifecycle owns process shutdown for the launcher.
//
// A Lifecycle holds an ordered list of shutdown hooks and a single
// "already shut down" flag. Every termination path funnels into Shutdown:
// a normal return from the run body, an interrupt or termination signal,
// a failed startup, or a panic. The flag is set with compare-and-swap, so
// the hooks run at most once no matter how many triggers fire or how
// concurrently they arrive.
//
// Signals are received on a channel watched by a goroutine that runs under
// a vawter.tech/stopper context; the first signal stops the run context and
// lets the body return.
package lifecycle

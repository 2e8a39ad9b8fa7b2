// Package registry looks up the newest published tag of the engine image.
//
// The lookup is a single GET against a Docker Hub style tags endpoint
// returning {"results": [{"name": "..."}, ...]}. The registry's own
// ordering is trusted: the first result is the latest tag. Nothing is
// cached, every invocation asks the registry again.
package registry

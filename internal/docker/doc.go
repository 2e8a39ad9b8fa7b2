// Package docker wraps the Docker Engine API client for the launcher.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows), honouring DOCKER_HOST and friends
//   - Daemon reachability checks used before "compose up"
//   - Listing the containers of a compose project by the
//     com.docker.compose.project label compose puts on every container
//
// Starting and stopping containers is left to the compose CLI; this
// package only reads state.
package docker

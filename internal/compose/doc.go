// Package compose drives the docker compose CLI for the engine
// development project and reads the project's compose files.
//
// This package handles:
//   - Building "-f <file>... -p <project> up/down" argument lists
//   - Running the compose binary as a child process that inherits the
//     terminal's stdin, stdout and stderr
//   - Loading compose YAML files (gopkg.in/yaml.v3) to validate them and
//     list their services before anything is started
//
// The compose binary defaults to the plugin-style "docker compose"; a
// standalone "docker-compose" binary can be configured instead.
package compose

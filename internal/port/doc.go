// Package port checks host port availability before the engine is
// started.
//
// Availability is tested the most direct way: by trying to bind the port
// with net.Listen / net.ListenPacket. When the requested port is taken the
// Scanner can suggest a free one from a nearby range.
package port

package port

import (
	"fmt"
	"net"
)

// suggestionWindow is how many ports above a taken port are probed when
// looking for an alternative to suggest.
const suggestionWindow = 100

// Scanner checks whether ports are free on the host.
//
// It binds all interfaces (":port") because Docker publishes ports on
// 0.0.0.0; binding only loopback would miss conflicts.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable reports whether port can be bound for protocol ("tcp" or
// "udp"). Unknown protocols are reported as unavailable.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		_ = listener.Close()
		return true

	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true

	default:
		return false
	}
}

// FindAvailablePort returns the first free port in [startPort, endPort].
func (s *Scanner) FindAvailablePort(startPort, endPort int, protocol string) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port, protocol) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available %s port found in range %d-%d", protocol, startPort, endPort)
}

// InUseError reports a taken host port. Suggestion is a free port close
// to it, or 0 when none was found.
type InUseError struct {
	Port       int
	Suggestion int
}

func (e *InUseError) Error() string {
	if e.Suggestion > 0 {
		return fmt.Sprintf("port %d is already in use (port %d is free, try --port %d)",
			e.Port, e.Suggestion, e.Suggestion)
	}
	return fmt.Sprintf("port %d is already in use", e.Port)
}

// CheckTCP returns an *InUseError when the TCP port is taken.
func (s *Scanner) CheckTCP(port int) error {
	if s.IsPortAvailable(port, "tcp") {
		return nil
	}

	end := port + suggestionWindow
	if end > 65535 {
		end = 65535
	}
	suggestion, err := s.FindAvailablePort(port+1, end, "tcp")
	if err != nil {
		suggestion = 0
	}
	return &InUseError{Port: port, Suggestion: suggestion}
}

package service

import (
	"errors"
	"fmt"
)

// FaultKind tags the expected failure modes of the gateway. Callers switch
// on the kind to render precise messages; nothing here is fatal.
type FaultKind int

const (
	// FaultTransport: send attempted while disconnected, or the transport
	// dropped mid-flight. Never retried by the gateway itself.
	FaultTransport FaultKind = iota + 1
	// FaultTimeout: no matching reply within the call deadline.
	FaultTimeout
	// FaultServer: a well-formed reply whose payload is an error object;
	// Message carries the server text verbatim.
	FaultServer
)

type Fault struct {
	Kind    FaultKind
	Code    string
	Message string
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultTransport:
		return fmt.Sprintf("transport: %s", f.Message)
	case FaultTimeout:
		return fmt.Sprintf("timeout: %s", f.Message)
	case FaultServer:
		if f.Code != "" {
			return fmt.Sprintf("server [%s]: %s", f.Code, f.Message)
		}
		return fmt.Sprintf("server: %s", f.Message)
	}
	return f.Message
}

func transportFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultTransport, Message: fmt.Sprintf(format, args...)}
}

func timeoutFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultTimeout, Message: fmt.Sprintf(format, args...)}
}

func serverFault(e *APIError) *Fault {
	return &Fault{Kind: FaultServer, Code: e.Code, Message: e.Message}
}

// FaultOf extracts the Fault from an error chain, nil if there is none.
func FaultOf(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return nil
}

func IsTimeout(err error) bool {
	f := FaultOf(err)
	return f != nil && f.Kind == FaultTimeout
}

func IsTransport(err error) bool {
	f := FaultOf(err)
	return f != nil && f.Kind == FaultTransport
}

//go:build !linux && !darwin

package focus

type nullIntrospector struct{}

// NewIntrospector returns an introspector that reports focus tracking as
// unavailable; every paste routes through the copy fallback.
func NewIntrospector() Introspector {
	return nullIntrospector{}
}

func (nullIntrospector) Available() bool    { return false }
func (nullIntrospector) Capture() *Snapshot { return nil }
func (nullIntrospector) SecureInput() bool  { return false }

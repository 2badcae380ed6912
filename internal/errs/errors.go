// Package errs provides the engine's typed error taxonomy: a small,
// fluent builder over the error kinds the duplex engine can produce,
// with enough structured context to drive the Status/Event Surface
// without unwinding across an audio callback boundary.
package errs

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Kind is the taxonomy of error conditions the engine can report.
// It intentionally names conditions, not Go types.
type Kind string

const (
	KindInvalidArgument  Kind = "invalid_argument"
	KindInvalidState     Kind = "invalid_state"
	KindHostInitFailed   Kind = "host_init_failed"
	KindDeviceOpenFailed Kind = "device_open_failed"
	KindDeviceStartFailed Kind = "device_start_failed"
	KindOutOfMemory      Kind = "out_of_memory"
	KindDeviceLost       Kind = "device_lost"
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == "" {
		return "unknown"
	}
	return string(k)
}

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// Error wraps a cause with the component, kind, and structured context
// that produced it, following the builder pattern the rest of the
// engine uses for diagnostics (Component/ForKind/Context/Build).
type Error struct {
	Err       error
	component string
	Kind      Kind
	Context   map[string]any
	Timestamp time.Time

	mu       sync.RWMutex
	reported bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.component, e.Kind)
	}
	return e.Err.Error()
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Component returns the component name, defaulting to "unknown".
func (e *Error) Component() string {
	if e.component == "" {
		return ComponentUnknown
	}
	return e.component
}

// GetContext returns a copy of the error's structured context.
func (e *Error) GetContext() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.Context == nil {
		return nil
	}
	out := make(map[string]any, len(e.Context))
	maps.Copy(out, e.Context)
	return out
}

// MarkReported records that this error has already been forwarded to
// the Status/Event Surface's error sink, so retries don't double-emit.
func (e *Error) MarkReported() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reported = true
}

// IsReported reports whether MarkReported has been called.
func (e *Error) IsReported() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reported
}

// Builder provides the fluent construction chain used throughout the
// engine: errs.New(cause).Component("engine").ForKind(errs.KindInvalidState).
// Context("state", s).Build().
type Builder struct {
	err       error
	component string
	kind      Kind
	context   map[string]any
}

// New starts a builder wrapping cause, which may be nil for a
// synthesized error that carries no underlying Go error.
func New(cause error) *Builder {
	return &Builder{err: cause}
}

// Newf starts a builder with a formatted message as the cause.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the owning component (e.g. "engine", "ringbuffer",
// "hostaudio").
func (b *Builder) Component(component string) *Builder {
	b.component = component
	return b
}

// ForKind sets the error kind for categorization.
func (b *Builder) ForKind(kind Kind) *Builder {
	b.kind = kind
	return b
}

// Context attaches a key/value pair of structured diagnostic context.
func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build produces the final *Error.
func (b *Builder) Build() *Error {
	return &Error{
		Err:       b.err,
		component: b.component,
		Kind:      b.kind,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// KindOf extracts the Kind from err if it (or something it wraps) is
// an *Error; otherwise it returns the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return ""
	}
	return e.Kind
}

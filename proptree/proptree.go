// Package proptree implements the uniform hierarchical property accessor
// used by every addressable/behaviour/device object: a single recursive
// access() entry point that reads or writes a named (optionally indexed)
// field against a small per-class descriptor table, with no per-call
// allocation beyond what the caller's value type requires.
package proptree

import "fmt"

// PropType enumerates the field kinds a Descriptor can describe.
type PropType uint8

const (
	TBool PropType = iota
	TInt8
	TInt16
	TInt32
	TInt64
	TFloat64
	TCString
	TString
	TObject
	TProxy
)

// Owner-tag range offsets: handler code dispatches on a descriptor's
// AccessKey by which 1000-wide band it falls in.
const (
	DescriptionBase = 1000
	SettingsBase    = 2000
	StateBase       = 3000
)

// ArraySize is the sentinel index that requests an array field's length
// instead of one of its elements.
const ArraySize = -1

// Descriptor describes one property of a Container.
type Descriptor struct {
	Name      string
	Type      PropType
	IsArray   bool
	AccessKey int // biased by Description/Settings/StateBase for dispatch
	OwnerTag  int // arbitrary tag the owning Container uses to dispatch
}

// Code is the proptree-local error code space; it mirrors the numeric
// codes the upstream API surfaces for property access.
type Code int

const (
	CodeUnknownName  Code = 501
	CodeOutOfRange   Code = 204
	CodeTypeMismatch Code = 415
	CodeReadOnly     Code = 403
)

// Error is returned by Access on any failure.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("proptree: %d: %s", e.Code, e.Msg) }

func errUnknown(name string) error {
	return &Error{Code: CodeUnknownName, Msg: fmt.Sprintf("unknown property %q", name)}
}
func errOutOfRange(name string, index int) error {
	return &Error{Code: CodeOutOfRange, Msg: fmt.Sprintf("%q index %d out of range", name, index)}
}
func errTypeMismatch(name string) error {
	return &Error{Code: CodeTypeMismatch, Msg: fmt.Sprintf("%q: value type mismatch", name)}
}
func errReadOnly(name string) error {
	return &Error{Code: CodeReadOnly, Msg: fmt.Sprintf("%q is read-only", name)}
}

// IsOutOfRange reports whether err is the (recoverable, non-propagating)
// array-exhaustion condition.
func IsOutOfRange(err error) bool {
	pe, ok := err.(*Error)
	return ok && pe.Code == CodeOutOfRange
}

// Container is implemented by every property-tree node: Behaviours,
// Devices, Scenes, Channels, and the synthetic sub-containers they expose
// for object/proxy-typed fields.
type Container interface {
	// Descriptors returns this container's property fields, in a stable
	// order (array index 0 in the result is descriptor priority order,
	// not field order — callers needing "*" to enumerate fields use this
	// order directly).
	Descriptors() []Descriptor

	// ArrayLength returns the current length of an array-typed descriptor.
	ArrayLength(d Descriptor) int

	// AccessField reads (value==nil on entry for a read) or writes a
	// scalar or array-element field. idx is 0 for non-array fields.
	AccessField(write bool, value any, d Descriptor, idx int) (any, error)

	// GetContainer resolves an object/proxy-typed field to its backing
	// sub-container (idx is 0 for non-array object fields).
	GetContainer(d Descriptor, idx int) (Container, error)

	// WrittenProperty is called on the container owning d after a write
	// reaches a sub-container obtained via GetContainer(d, idx), so the
	// owner can mark itself (or its persistence row) dirty.
	WrittenProperty(d Descriptor, idx int, sub Container)
}

func findDescriptor(c Container, name string) (Descriptor, bool) {
	for _, d := range c.Descriptors() {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Access is the single recursive read/write entry point.
// For a read, value is ignored; for a write, value carries the
// new content (a map[string]any for "*", the field's native Go type
// otherwise).
func Access(c Container, write bool, value any, name string, index int, count int) (any, error) {
	switch name {
	case "*":
		return accessStar(c, write, value)
	case "^":
		ds := c.Descriptors()
		if len(ds) == 0 {
			return nil, errUnknown("^")
		}
		return Access(c, write, value, ds[0].Name, index, count)
	}

	d, ok := findDescriptor(c, name)
	if !ok {
		return nil, errUnknown(name)
	}

	if d.IsArray {
		return accessArray(c, write, value, d, index, count)
	}

	if d.Type == TObject || d.Type == TProxy {
		sub, err := c.GetContainer(d, 0)
		if err != nil {
			return nil, err
		}
		pierce := "*"
		if d.Type == TProxy {
			pierce = "^"
		}
		res, err := Access(sub, write, value, pierce, 0, 0)
		if err == nil && write {
			c.WrittenProperty(d, 0, sub)
		}
		return res, err
	}

	return c.AccessField(write, value, d, 0)
}

func accessStar(c Container, write bool, value any) (any, error) {
	ds := c.Descriptors()
	if !write {
		out := make(map[string]any, len(ds))
		for _, d := range ds {
			v, err := Access(c, false, nil, d.Name, 0, 0)
			if err != nil && !IsOutOfRange(err) {
				return nil, err
			}
			out[d.Name] = v
		}
		return out, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, errTypeMismatch("*")
	}
	for k, v := range m {
		if _, err := Access(c, true, v, k, 0, 0); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func accessArray(c Container, write bool, value any, d Descriptor, index int, count int) (any, error) {
	if index == ArraySize {
		return c.ArrayLength(d), nil
	}

	single := index >= 0 && count <= 0

	if single {
		if d.Type == TObject || d.Type == TProxy {
			sub, err := c.GetContainer(d, index)
			if err != nil {
				return nil, err
			}
			pierce := "*"
			if d.Type == TProxy {
				pierce = "^"
			}
			res, err := Access(sub, write, value, pierce, 0, 0)
			if err == nil && write {
				c.WrittenProperty(d, index, sub)
			}
			return res, err
		}
		return c.AccessField(write, value, d, index)
	}

	// Range read: collect `count` elements starting at index, stopping on
	// the first out-of-range error without treating it as a failure.
	if write {
		return nil, errTypeMismatch(d.Name) // ranged writes are not defined
	}
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		idx := index + i
		var v any
		var err error
		if d.Type == TObject || d.Type == TProxy {
			var sub Container
			sub, err = c.GetContainer(d, idx)
			if err == nil {
				v, err = Access(sub, false, nil, "*", 0, 0)
			}
		} else {
			v, err = c.AccessField(false, nil, d, idx)
		}
		if err != nil {
			if IsOutOfRange(err) {
				break
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CheckReadOnly is a helper for AccessField implementations: return this
// on a write attempt against a read-only descriptor.
func CheckReadOnly(write bool, name string) error {
	if write {
		return errReadOnly(name)
	}
	return nil
}

// OutOfRangeFor is a helper for AccessField/GetContainer implementations
// guarding array bounds.
func OutOfRangeFor(name string, index, length int) error {
	if index < 0 || index >= length {
		return errOutOfRange(name, index)
	}
	return nil
}

// TypeMismatch is a helper constructing the 415 error for AccessField
// implementations rejecting an ill-typed write value.
func TypeMismatch(name string) error { return errTypeMismatch(name) }

// Package bstring implements a length-prefixed byte container used at
// every boundary that carries binary payloads (point-cloud data,
// serialized map state) so that embedded zero bytes survive intact.
package bstring

// String owns a byte sequence and its length. It exists so that callers
// coming from a NUL-terminated-string world never have to worry about
// point-cloud or pbstream payloads that legitimately contain zero bytes.
type String struct {
	data []byte
}

// FromString constructs a String from a regular Go string.
func FromString(s string) String {
	return String{data: []byte(s)}
}

// FromBytes constructs a String from a byte slice, copying it so the
// caller is free to reuse or mutate the original slice.
func FromBytes(b []byte) String {
	if b == nil {
		return String{}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return String{data: cp}
}

// Bytes returns the underlying byte slice. Callers must not mutate it.
func (s String) Bytes() []byte {
	return s.data
}

// String returns the contents as a Go string.
func (s String) String() string {
	return string(s.data)
}

// Len returns the number of bytes held.
func (s String) Len() int {
	return len(s.data)
}

// Empty reports whether the buffer holds zero bytes.
func (s String) Empty() bool {
	return len(s.data) == 0
}

// Release drops the reference to the underlying bytes. Double-release is
// a no-op; it exists to mirror the explicit destroy calls the boundary
// type requires in the spec this package is modeled on.
func (s *String) Release() {
	s.data = nil
}

// Package page implements the ANT+ data page: the fixed 8-byte unit every sensor
// broadcasts, together with the pieces every device profile shares:
//   - rollover-safe accumulation of wrapping counters (Counter, DownCounter)
//   - duplicate suppression and background-page toggle gating (Codec)
//   - the common pages (70, 71, 76, 80, 81, 82) defined for all profiles
package page

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the length of every ANT+ data page in bytes.
const Size = 8

// Page is an immutable 8-byte ANT+ data page.
type Page [Size]byte

// FromBytes converts a raw payload into a Page.
// Returns false if the payload is not exactly Size bytes long.
func FromBytes(b []byte) (Page, bool) {
	var p Page
	if len(b) != Size {
		return p, false
	}
	copy(p[:], b)
	return p, true
}

// Parse decodes a page from hex, accepting an optional "0x" prefix and
// separators (spaces, colons, dashes).
func Parse(s string) (Page, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Page{}, fmt.Errorf("invalid page %q: %w", s, err)
	}
	p, ok := FromBytes(raw)
	if !ok {
		return Page{}, fmt.Errorf("invalid page %q: expected %d bytes, got %d", s, Size, len(raw))
	}
	return p, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Page {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Number returns byte 0, the page number including any toggle bit.
func (p Page) Number() byte {
	return p[0]
}

// Uint16 reads a little-endian 16-bit field at offset i.
func (p Page) Uint16(i int) uint16 {
	return binary.LittleEndian.Uint16(p[i : i+2])
}

// Uint16BE reads a big-endian 16-bit field at offset i (crank torque frequency pages).
func (p Page) Uint16BE(i int) uint16 {
	return binary.BigEndian.Uint16(p[i : i+2])
}

// Uint24 reads a little-endian 24-bit field at offset i.
func (p Page) Uint24(i int) uint32 {
	return uint32(p[i]) | uint32(p[i+1])<<8 | uint32(p[i+2])<<16
}

// Uint32 reads a little-endian 32-bit field at offset i.
func (p Page) Uint32(i int) uint32 {
	return binary.LittleEndian.Uint32(p[i : i+4])
}

// Int32 reads a little-endian signed 32-bit field at offset i.
func (p Page) Int32(i int) int32 {
	return int32(p.Uint32(i))
}

// Bytes returns a copy of the page contents.
func (p Page) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, p[:])
	return b
}

// String renders the page as upper-case hex bytes separated by spaces.
func (p Page) String() string {
	var sb strings.Builder
	for i, b := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler so pages render as hex in JSON and YAML.
func (p Page) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Page) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Builder assembles outbound pages field by field.
type Builder struct {
	p Page
}

// NewBuilder starts a page with the given page number; all other bytes are 0xFF
// ("reserved/invalid" in every ANT+ profile).
func NewBuilder(number byte) *Builder {
	b := &Builder{}
	for i := range b.p {
		b.p[i] = 0xFF
	}
	b.p[0] = number
	return b
}

// Byte sets a single byte.
func (b *Builder) Byte(i int, v byte) *Builder {
	b.p[i] = v
	return b
}

// Uint16 writes a little-endian 16-bit field.
func (b *Builder) Uint16(i int, v uint16) *Builder {
	binary.LittleEndian.PutUint16(b.p[i:i+2], v)
	return b
}

// Uint16BE writes a big-endian 16-bit field.
func (b *Builder) Uint16BE(i int, v uint16) *Builder {
	binary.BigEndian.PutUint16(b.p[i:i+2], v)
	return b
}

// Uint24 writes a little-endian 24-bit field.
func (b *Builder) Uint24(i int, v uint32) *Builder {
	b.p[i] = byte(v)
	b.p[i+1] = byte(v >> 8)
	b.p[i+2] = byte(v >> 16)
	return b
}

// Uint32 writes a little-endian 32-bit field.
func (b *Builder) Uint32(i int, v uint32) *Builder {
	binary.LittleEndian.PutUint32(b.p[i:i+4], v)
	return b
}

// Page returns the assembled page.
func (b *Builder) Page() Page {
	return b.p
}

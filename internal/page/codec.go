package page

// ToggleMask is the bit in byte 0 that alternates every four pages on
// profiles with background pages (heart rate, bike speed, bike cadence).
const ToggleMask byte = 0x80

// Frame describes how a decoder should treat an accepted page.
type Frame struct {
	// Number is the page number with the toggle bit stripped.
	Number byte
	// First is set on the very first page a decoder receives.
	First bool
	// BackgroundReady is set once background pages may be trusted.
	BackgroundReady bool
	// Duplicate is set on a rejected page that repeats the previous one.
	Duplicate bool
}

// Codec holds the page-level state shared by all single-page decoders:
// the previous page for duplicate suppression and the toggle synchronisation.
type Codec struct {
	toggleMask  byte
	last        Page
	seeded      bool
	firstToggle byte
	toggled     bool
}

// NewCodec creates a codec. toggleMask is ToggleMask for profiles that flip a bit
// in byte 0, or 0 for profiles without toggling (background pages always ready).
func NewCodec(toggleMask byte) Codec {
	return Codec{toggleMask: toggleMask}
}

// Decode filters a page. It returns false when the page is byte-identical to the
// previous one and must not be applied again; the frame then only reports the
// page number and Duplicate so decoders can count idle broadcasts.
func (c *Codec) Decode(p Page) (Frame, bool) {
	if !c.seeded {
		c.seeded = true
		c.last = p
		c.firstToggle = p[0] & c.toggleMask
		return Frame{
			Number:          p[0] &^ c.toggleMask,
			First:           true,
			BackgroundReady: c.toggleMask == 0,
		}, true
	}

	if p == c.last {
		return Frame{Number: p[0] &^ c.toggleMask, Duplicate: true}, false
	}
	c.last = p

	if !c.toggled && p[0]&c.toggleMask != c.firstToggle {
		c.toggled = true
	}

	return Frame{
		Number:          p[0] &^ c.toggleMask,
		BackgroundReady: c.toggleMask == 0 || c.toggled,
	}, true
}

// Toggled reports whether the toggle bit has been seen to flip.
func (c *Codec) Toggled() bool {
	return c.toggled
}

// Reset clears the codec so the next page is treated as the first one.
func (c *Codec) Reset() {
	*c = Codec{toggleMask: c.toggleMask}
}

package page

// Width is the bit width of a wrapping counter field.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width24 Width = 24
)

// Modulus returns 2^w.
func (w Width) Modulus() uint32 {
	return 1 << uint32(w)
}

func (w Width) mask() uint32 {
	return w.Modulus() - 1
}

// Delta returns the forward distance from prev to cur for a counter of width w,
// compensating for at most one wraparound. Gaps longer than a full wrap period
// cannot be detected and yield garbage; callers must sample faster than that.
func Delta(w Width, prev, cur uint32) uint32 {
	prev &= w.mask()
	cur &= w.mask()
	if cur >= prev {
		return cur - prev
	}
	return w.Modulus() + cur - prev
}

// Counter accumulates a wrapping counter. The first reading seeds the counter
// and contributes nothing to the total.
type Counter struct {
	width  Width
	prev   uint32
	total  uint64
	seeded bool
}

// NewCounter creates a counter for a field of width w.
func NewCounter(w Width) Counter {
	return Counter{width: w}
}

// Update records a new raw reading and returns the delta since the previous one.
func (c *Counter) Update(raw uint32) uint32 {
	raw &= c.width.mask()
	if !c.seeded {
		c.prev = raw
		c.seeded = true
		return 0
	}
	d := Delta(c.width, c.prev, raw)
	c.prev = raw
	c.total += uint64(d)
	return d
}

// Total returns the accumulated delta since the first reading.
func (c *Counter) Total() uint64 {
	return c.total
}

// Prev returns the last raw reading.
func (c *Counter) Prev() uint32 {
	return c.prev
}

// Seeded reports whether at least one reading was recorded.
func (c *Counter) Seeded() bool {
	return c.seeded
}

// Reset forgets all state; the next reading seeds the counter again.
func (c *Counter) Reset() {
	*c = Counter{width: c.width}
}

// DownCounter accumulates a counter that counts downward and wraps from 0 to
// 2^w-1, such as the treadmill negative vertical distance.
type DownCounter struct {
	Counter
}

// NewDownCounter creates a down-counting accumulator for a field of width w.
func NewDownCounter(w Width) DownCounter {
	return DownCounter{Counter: NewCounter(w)}
}

// Update records a new raw reading and returns how far the counter went down.
func (c *DownCounter) Update(raw uint32) uint32 {
	raw &= c.width.mask()
	if !c.seeded {
		c.prev = raw
		c.seeded = true
		return 0
	}
	d := Delta(c.width, raw, c.prev)
	c.prev = raw
	c.total += uint64(d)
	return d
}

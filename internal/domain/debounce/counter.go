// Package debounce turns noisy per-frame color verdicts into confirmations
// that require sustained presence and tolerate brief absence.
package debounce

import "sort"

// DefaultThreshold is the counter value at which a color is confirmed.
const DefaultThreshold = 10

// Confirmation is emitted when a color's counter reaches the threshold.
// Distinct is the number of different colors confirmed since the last Reset.
type Confirmation struct {
	Color    string
	Distinct int
}

// Counter keeps one signed counter per color for a single camera. It is not
// safe for concurrent use; each camera worker owns its own Counter.
type Counter struct {
	threshold int
	counts    map[string]int
	confirmed map[string]struct{}
}

// New returns a Counter confirming at threshold (DefaultThreshold when <= 0).
func New(threshold int) *Counter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Counter{
		threshold: threshold,
		counts:    make(map[string]int),
		confirmed: make(map[string]struct{}),
	}
}

// Threshold returns the confirmation threshold.
func (c *Counter) Threshold() int { return c.threshold }

// Observe applies one frame. colors lists every color the classifier tracks
// and present holds those seen in the frame. Present colors increment,
// absent ones decrement floored at zero. A counter reaching the threshold
// confirms its color, yields one Confirmation and resets to zero.
func (c *Counter) Observe(colors []string, present map[string]bool) []Confirmation {
	var out []Confirmation
	for _, name := range colors {
		if !present[name] {
			if c.counts[name] > 0 {
				c.counts[name]--
			}
			continue
		}
		c.counts[name]++
		if c.counts[name] < c.threshold {
			continue
		}
		c.counts[name] = 0
		c.confirmed[name] = struct{}{}
		out = append(out, Confirmation{Color: name, Distinct: len(c.confirmed)})
	}
	return out
}

// Count returns the current counter value for color.
func (c *Counter) Count(color string) int { return c.counts[color] }

// Confirmed returns the confirmed colors in lexical order.
func (c *Counter) Confirmed() []string {
	out := make([]string, 0, len(c.confirmed))
	for name := range c.confirmed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset clears every counter and the confirmed set.
func (c *Counter) Reset() {
	clear(c.counts)
	clear(c.confirmed)
}

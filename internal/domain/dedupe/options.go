package dedupe

// Option configures the memory deduper.
type Option func(*memoryDeduper)

// WithCapacity bounds the number of remembered keys. Zero or negative keeps
// every key.
func WithCapacity(n int) Option {
	return func(d *memoryDeduper) {
		d.capacity = n
	}
}

package md

type RingBuffer struct {
	values []Candle
	size   int
	index  int
	filled bool
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		values: make([]Candle, size),
		size:   size,
	}
}

func (r *RingBuffer) Add(value Candle) {
	r.values[r.index] = value
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
}

func (r *RingBuffer) Len() int {
	if r.filled {
		return r.size
	}
	return r.index
}

// Values returns the buffered candles oldest first.
func (r *RingBuffer) Values() []Candle {
	length := r.Len()
	result := make([]Candle, 0, length)
	if length == 0 {
		return result
	}
	if r.filled {
		result = append(result, r.values[r.index:]...)
	}
	result = append(result, r.values[:r.index]...)
	return result
}

func (r *RingBuffer) Last() (Candle, bool) {
	if r.Len() == 0 {
		return Candle{}, false
	}
	return r.values[(r.index-1+r.size)%r.size], true
}

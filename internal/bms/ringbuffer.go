package bms

// RingBuffer holds the most recent SampleCapacity readings. Once full the
// oldest reading is overwritten.
type RingBuffer struct {
	data  [SampleCapacity]float64
	head  int
	count int
}

func (r *RingBuffer) Push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % SampleCapacity
	if r.count < SampleCapacity {
		r.count++
	}
}

// Len is the number of readings held.
func (r *RingBuffer) Len() int {
	return r.count
}

// Average is the mean of the readings held, however many there are.
// An empty buffer averages to 0.
func (r *RingBuffer) Average() float64 {
	if r.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < r.count; i++ {
		sum += r.data[i]
	}
	return sum / float64(r.count)
}

func (r *RingBuffer) Reset() {
	*r = RingBuffer{}
}

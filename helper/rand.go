package helper

// Source is a seeded splitmix64 generator. It satisfies the rand.Source
// interfaces of golang.org/x/exp/rand and math/rand/v2, so it can seed gonum.
type Source struct {
	state uint64
}

// NewSource returns a Source seeded with seed.
func NewSource(seed int64) *Source {
	s := &Source{}
	s.Seed(uint64(seed))
	return s
}

// Seed resets the generator.
func (s *Source) Seed(seed uint64) {
	s.state = seed
}

// Uint64 returns the next pseudo random value.
func (s *Source) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// Intn returns a value in [0, n). It panics if n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("helper: invalid argument to Intn")
	}
	return int(s.Uint64() % uint64(n))
}

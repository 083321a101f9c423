package logger

import (
	"strconv"
	"strings"
	"sync"
)

// keyedSampler passes num of every den events, counting each key separately
// so busy callback traffic cannot crowd out the rarer message updates.
type keyedSampler struct {
	mu     sync.Mutex
	num    int
	den    int
	counts map[string]int
}

func newKeyedSampler(num, den int) *keyedSampler {
	s := &keyedSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts every key's window. A non-positive
// ratio disables sampling.
func (s *keyedSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	s.num, s.den = min(num, den), den
	s.counts = make(map[string]int)
}

// Allow reports whether the next event for key is kept.
func (s *keyedSampler) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den == 0 {
		return true
	}
	n := s.counts[key]%s.den + 1
	s.counts[key] = n
	return n <= s.num
}

// parseRatio reads "num/den" or "den" (meaning 1/den). ok is false for
// anything else; "0" parses as the disabled ratio.
func parseRatio(spec string) (num, den int, ok bool) {
	spec = strings.TrimSpace(spec)
	if a, b, found := strings.Cut(spec, "/"); found {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		d, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return n, d, true
	}
	v, err := strconv.Atoi(spec)
	if err != nil {
		return 0, 0, false
	}
	if v <= 0 {
		return 0, 0, true
	}
	return 1, v, true
}

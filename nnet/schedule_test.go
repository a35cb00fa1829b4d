package nnet

import (
	"math"
	"testing"
)

func TestSchedule(t *testing.T) {
	s := NewSchedule(DefaultConfig())
	for epoch, expect := range map[int]float64{
		0: 0.1, 50: 0.1, 99: 0.1, 100: 0.01, 149: 0.01, 150: 0.001, 199: 0.001, 200: 0.0001, 250: 0.0001,
	} {
		if rate := s.Rate(epoch); math.Abs(rate-expect) > 1e-12 {
			t.Errorf("epoch %d: got rate %g expect %g", epoch, rate, expect)
		}
	}
	for epoch, expect := range map[int]bool{0: false, 99: false, 100: true, 101: false, 150: true, 200: true} {
		if s.Decayed(epoch) != expect {
			t.Errorf("epoch %d: decayed should be %v", epoch, expect)
		}
	}
}

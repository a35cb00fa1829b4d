package nnet

import "math"

// Schedule is a step decay learning rate: Base is multiplied by Decay once for each of the
// Epochs thresholds which have been reached.
type Schedule struct {
	Base   float64
	Decay  float64
	Epochs []int
}

// NewSchedule gets the learning rate schedule from the config.
func NewSchedule(conf Config) Schedule {
	return Schedule{Base: conf.Eta, Decay: conf.EtaDecay, Epochs: conf.EtaDecayEpochs}
}

// Rate returns the learning rate for the given 0 based epoch.
func (s Schedule) Rate(epoch int) float64 {
	n := 0
	for _, e := range s.Epochs {
		if epoch >= e {
			n++
		}
	}
	return s.Base * math.Pow(s.Decay, float64(n))
}

// Decayed reports if the rate changes at the start of this epoch.
func (s Schedule) Decayed(epoch int) bool {
	for _, e := range s.Epochs {
		if e == epoch && epoch > 0 {
			return true
		}
	}
	return false
}

package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrSampling = errors.New("analysis: series must be uniformly sampled with at least 4 points")

// PowerSpectrum returns |X_k|²/N for k = 0..N/2 of the mean-removed series.
func PowerSpectrum(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centered := make([]float64, n)
	for i, v := range data {
		centered[i] = v - mean
	}

	spectrum := fft.FFTReal(centered)
	ps := make([]float64, n/2+1)
	for i := range ps {
		a := cmplx.Abs(spectrum[i])
		ps[i] = a * a / float64(n)
	}
	return ps
}

// Frequencies returns the frequency in Hz of each PowerSpectrum bin for n
// samples spaced dt seconds apart.
func Frequencies(n int, dt float64) []float64 {
	fs := make([]float64, n/2+1)
	for k := range fs {
		fs[k] = float64(k) / (float64(n) * dt)
	}
	return fs
}

// sampleStep returns the spacing of times, failing unless it is uniform to
// within one part in 1e6.
func sampleStep(times []float64) (float64, error) {
	if len(times) < 4 {
		return 0, ErrSampling
	}
	dt := times[1] - times[0]
	if !(dt > 0) {
		return 0, ErrSampling
	}
	for i := 2; i < len(times); i++ {
		if math.Abs(times[i]-times[i-1]-dt) > 1e-6*dt {
			return 0, ErrSampling
		}
	}
	return dt, nil
}

// DominantPeriod returns the period in seconds of the strongest non-zero
// frequency of series sampled at times.
func DominantPeriod(times, series []float64) (float64, error) {
	if len(times) != len(series) {
		return 0, ErrSampling
	}
	dt, err := sampleStep(times)
	if err != nil {
		return 0, err
	}
	ps := PowerSpectrum(series)
	k := floats.MaxIdx(ps[1:]) + 1
	if ps[k] == 0 {
		return math.Inf(1), nil
	}
	return float64(len(series)) * dt / float64(k), nil
}

// Summary describes one temperature curve.
type Summary struct {
	Min, Max, Mean float64
	Amplitude      float64 // (Max-Min)/2
	PeakTime       float64 // time of Max
}

func Summarize(times, series []float64) Summary {
	if len(series) == 0 {
		return Summary{}
	}
	s := Summary{
		Min:  floats.Min(series),
		Max:  floats.Max(series),
		Mean: stat.Mean(series, nil),
	}
	s.Amplitude = (s.Max - s.Min) / 2
	if len(times) == len(series) {
		s.PeakTime = times[floats.MaxIdx(series)]
	}
	return s
}

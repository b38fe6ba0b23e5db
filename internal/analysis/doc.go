// Package analysis characterises saved surface temperature curves.
//
//   - [PowerSpectrum]: one-sided power spectrum of a uniformly sampled series
//   - [DominantPeriod]: period of the strongest non-zero frequency
//   - [Summarize]: extremes, mean and peak time of a diurnal curve
//
// A facet in periodic steady state has its spectral power concentrated at the
// rotation frequency and its harmonics:
//
//	period, err := analysis.DominantPeriod(times, facetTemps)
package analysis

// Package viz renders run progress and saved results in the terminal.
//
//   - [Progress]: a tpm.Observer that logs throttled progress lines
//   - [Model]: a Bubble Tea view of a running simulation, fed by [Forward]
//   - [PlotTemperatures], [PlotSpectrum]: asciigraph plots of saved curves
//
// # Key Bindings
//
//	q, ctrl+c - stop the run and quit
package viz

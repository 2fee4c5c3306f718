package ipts

import "math"

// Calibration constants for the DFT pipeline (§4.5). These were reverse
// engineered against real hardware; PositionExponent in particular is
// tunable (spec Open Question ii) and is exposed as a variable rather than
// a constant.
const (
	PositionMinAmp = 50.0
	PositionMinMag = 2000.0
	ButtonMinMag   = 1000.0
	FreqMinMag     = 10000.0
)

// PositionExponent minimizes the jagginess of diagonal lines in the
// parabolic position fit (§4.5 step 4). Tune with care.
var PositionExponent = -0.7

// DftProcessor computes sub-pixel stylus position, button/eraser phase
// classification, and pressure from DFT windows, driving a
// StylusStateMachine through the appropriate transitions.
type DftProcessor struct{}

// NewDftProcessor returns a ready-to-use, stateless DftProcessor.
func NewDftProcessor() *DftProcessor {
	return &DftProcessor{}
}

// Process consumes one DftWindow and updates state accordingly. numCols
// and numRows are the last-cached heatmap dimensions (0 until a
// HeatmapDimensions report has been seen); invertX/invertY are host
// configuration.
func (d *DftProcessor) Process(w DftWindow, state *StylusStateMachine, numCols, numRows int, invertX, invertY bool) {
	switch w.DataType {
	case DftPosition:
		d.processPosition(w, state, numCols, numRows, invertX, invertY)
	case DftButton:
		d.processButton(w, state)
	case DftPressure:
		d.processPressure(w, state)
	}
}

const centerComponent = DftNumComponents / 2 // 4

func (d *DftProcessor) processPosition(w DftWindow, state *StylusStateMachine, numCols, numRows int, invertX, invertY bool) {
	if w.NumRows == 0 || numCols == 0 || numRows == 0 ||
		w.X[0].Magnitude <= PositionMinMag || w.Y[0].Magnitude <= PositionMinMag {
		state.Stop()
		return
	}

	// Phasor of the strongest position signal, recorded regardless of
	// whether the parabolic fit below succeeds; the button stage needs it
	// to disambiguate button vs. eraser by phase agreement.
	state.SetLastPhasor(
		int32(w.X[0].Real[centerComponent])+int32(w.Y[0].Real[centerComponent]),
		int32(w.X[0].Imag[centerComponent])+int32(w.Y[0].Imag[centerComponent]),
	)

	x := interpolatePosition(&w.X[0])
	y := interpolatePosition(&w.Y[0])
	if math.IsNaN(x) || math.IsNaN(y) {
		state.Stop()
		return
	}

	x /= float64(numCols - 1)
	y /= float64(numRows - 1)
	if invertX {
		x = 1 - x
	}
	if invertY {
		y = 1 - y
	}
	state.SetPosition(clampF(x, 0, 1), clampF(y, 0, 1))
}

func (d *DftProcessor) processButton(w DftWindow, state *StylusStateMachine) {
	if w.NumRows == 0 {
		return
	}

	var button, rubber bool
	if w.X[0].Magnitude > ButtonMinMag && w.Y[0].Magnitude > ButtonMinMag {
		lastReal, lastImag := state.LastPhasor()
		re := int32(w.X[0].Real[centerComponent]) + int32(w.Y[0].Real[centerComponent])
		im := int32(w.X[0].Imag[centerComponent]) + int32(w.Y[0].Imag[centerComponent])
		btn := lastReal*re + lastImag*im
		button = btn < 0
		rubber = btn > 0
	}
	state.SetButtonRubber(button, rubber)
}

func (d *DftProcessor) processPressure(w DftWindow, state *StylusStateMachine) {
	if w.NumRows < DftPressureRows {
		return
	}
	pFreq := interpolateFrequency(&w.X, &w.Y, DftPressureRows)
	if math.IsNaN(pFreq) {
		state.SetPressure(false, 0)
		return
	}

	p := (1 - pFreq) * MaxPressureV2
	if p <= 1 {
		state.SetPressure(false, 0)
		return
	}
	if p > MaxPressureV2 {
		p = MaxPressureV2
	}
	state.SetPressure(true, p/MaxPressureV2)
}

// interpolatePosition fits a parabola to the phase-aligned amplitudes of
// the three components centered on the row's peak and returns the
// position of its vertex in column/row units: row.First plus the center
// component index plus the clamped vertex offset. Returns NaN if the peak is too weak or the fit is not a
// maximum (§4.5 steps 1-7).
func interpolatePosition(row *DftWindowRow) float64 {
	i0 := centerComponent
	minD, maxD := -0.5, 0.5

	if row.Real[i0-1] == 0 && row.Imag[i0-1] == 0 {
		i0++
		minD = -1
	} else if row.Real[i0+1] == 0 && row.Imag[i0+1] == 0 {
		i0--
		maxD = 1
	}

	re := float64(row.Real[i0])
	im := float64(row.Imag[i0])
	amp := math.Hypot(re, im)
	if amp < PositionMinAmp {
		return math.NaN()
	}
	sinv := re / amp
	cosv := im / amp

	x0 := sinv*float64(row.Real[i0-1]) + cosv*float64(row.Imag[i0-1])
	x1 := amp
	x2 := sinv*float64(row.Real[i0+1]) + cosv*float64(row.Imag[i0+1])

	x0 = math.Pow(x0, PositionExponent)
	x1 = math.Pow(x1, PositionExponent)
	x2 = math.Pow(x2, PositionExponent)

	if x0+x2 <= 2*x1 {
		return math.NaN()
	}

	d := (x0 - x2) / (2 * (x0 - 2*x1 + x2))
	return float64(row.First) + float64(i0) + clampF(d, minD, maxD)
}

// interpolateFrequency finds the row with the strongest combined
// magnitude across the first n rows of x and y, sums the 9 IQ components
// of its neighborhood across both axes, and applies Eric Jacobsen's
// modified quadratic frequency estimator to the result. Returns a
// normalized frequency in [0,1], or NaN if the signal is too weak.
func interpolateFrequency(x, y *[DftMaxRows]DftWindowRow, n int) float64 {
	if n < 3 {
		return math.NaN()
	}

	maxi, maxm := 0, uint32(0)
	for i := 0; i < n; i++ {
		m := x[i].Magnitude + y[i].Magnitude
		if m > maxm {
			maxm = m
			maxi = i
		}
	}
	if maxm < 2*FreqMinMag {
		return math.NaN()
	}

	minD, maxD := -0.5, 0.5
	if maxi < 1 {
		maxi = 1
		minD = -1
	} else if maxi > n-2 {
		maxi = n - 2
		maxD = 1
	}

	var real, imag [3]int64
	for i := 0; i < 3; i++ {
		row := maxi + i - 1
		for j := 0; j < DftNumComponents; j++ {
			real[i] += int64(x[row].Real[j]) + int64(y[row].Real[j])
			imag[i] += int64(x[row].Imag[j]) + int64(y[row].Imag[j])
		}
	}

	ra := float64(real[0] - real[2])
	rb := float64(2*real[1] - real[0] - real[2])
	ia := float64(imag[0] - imag[2])
	ib := float64(2*imag[1] - imag[0] - imag[2])

	d := (ra*rb + ia*ib) / (rb*rb + ib*ib)
	d = clampF(d, minD, maxD)

	return (float64(maxi) + d) / float64(n-1)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package ipts

// StylusStateMachine maintains proximity/contact/button/rubber state across
// the DFT sub-frames that make up one pen interaction and enforces the
// transition rules in §4.6: a rubber toggle always forces proximity off
// first, and every observable change is surfaced to the sink.
//
// One StylusStateMachine is created per pen session (per FrameParser, in
// this decoder) and mutated only by the DFT pipeline.
type StylusStateMachine struct {
	sink Sink
	rt   StylusRuntimeState
}

// NewStylusStateMachine creates a state machine reporting through sink.
func NewStylusStateMachine(sink Sink) *StylusStateMachine {
	return &StylusStateMachine{sink: sink}
}

// LastPhasor returns the complex phasor recorded at the last position
// update that passed the magnitude gate, used by the button/eraser phase
// comparison.
func (m *StylusStateMachine) LastPhasor() (real, imag int32) {
	return m.rt.LastReal, m.rt.LastImag
}

// SetLastPhasor records the phasor of the most recent position sample.
func (m *StylusStateMachine) SetLastPhasor(real, imag int32) {
	m.rt.LastReal = real
	m.rt.LastImag = imag
}

// SetPosition enters (or remains in) proximity at the given unit-square
// coordinates and always emits a sample.
func (m *StylusStateMachine) SetPosition(x, y float64) {
	m.rt.Sample.Proximity = true
	m.rt.Sample.X = x
	m.rt.Sample.Y = y
	m.sink.OnStylus(m.rt.Sample)
}

// Stop transitions to Off, clearing every flag, and emits a final snapshot
// if the pen was previously in proximity. It is a no-op otherwise.
func (m *StylusStateMachine) Stop() {
	if !m.rt.Sample.Proximity {
		return
	}
	m.rt.Sample.Proximity = false
	m.rt.Sample.Contact = false
	m.rt.Sample.Button = false
	m.rt.Sample.Rubber = false
	m.rt.Sample.Pressure = 0
	m.sink.OnStylus(m.rt.Sample)
}

// SetButtonRubber applies a new button/eraser reading. If rubber is about
// to change, proximity is forced off first (toggling the eraser flag while
// in proximity confuses downstream consumers), then the new flags are
// applied and, if anything observable changed, a sample is emitted.
func (m *StylusStateMachine) SetButtonRubber(button, rubber bool) {
	changed := button != m.rt.Sample.Button || rubber != m.rt.Sample.Rubber
	if rubber != m.rt.Sample.Rubber {
		m.Stop()
	}
	m.rt.Sample.Button = button
	m.rt.Sample.Rubber = rubber
	if changed {
		m.sink.OnStylus(m.rt.Sample)
	}
}

// SetPressure applies a new contact/pressure reading without altering
// proximity, emitting a sample if either observable value changed.
func (m *StylusStateMachine) SetPressure(contact bool, pressure float64) {
	changed := contact != m.rt.Sample.Contact || pressure != m.rt.Sample.Pressure
	m.rt.Sample.Contact = contact
	m.rt.Sample.Pressure = pressure
	if changed {
		m.sink.OnStylus(m.rt.Sample)
	}
}

package ipts

// In-memory shapes emitted to consumers through a Sink. These are the only
// records that ever leave the core.

// Device-unit constants from the wire protocol (§6).
const (
	MaxX          = 9600
	MaxY          = 7200
	MaxPressureV1 = 1024
	MaxPressureV2 = 4096

	DftNumComponents = 9
	DftMaxRows       = 16
	DftPressureRows  = 6

	// radiansPerUnit converts the controller's hundredths-of-a-degree tilt
	// fields into radians: raw / (18000/pi) == raw * pi / 18000.
	radiansPerUnit = 18000.0
)

// StylusSample is a normalized snapshot of the pen: unit-square coordinates,
// pressure in [0,1], and orthogonal state flags.
type StylusSample struct {
	Serial uint32

	Proximity bool
	Contact   bool
	Button    bool
	Rubber    bool

	X, Y     float64
	Pressure float64

	Altitude float64
	Azimuth  float64

	Timestamp uint16
}

// Heatmap is a width x height grid of capacitive intensities. Lower values
// mean stronger contact; the device emits inverted values.
type Heatmap struct {
	Width, Height uint8

	YMin, YMax uint8
	XMin, XMax uint8
	ZMin, ZMax uint8

	HasTimestamp bool
	Timestamp    uint32

	// Data is a borrowed view over the decoder's input buffer. The sink
	// must consume or copy it before returning.
	Data []byte
}

// DftDataType identifies what a DftWindow carries.
type DftDataType uint8

const (
	DftPosition DftDataType = 6
	DftButton   DftDataType = 9
	DftPressure DftDataType = 11
)

// DftWindowRow is one antenna-sweep row: 9 complex IQ components plus the
// antenna indices the row spans.
type DftWindowRow struct {
	Frequency uint32
	Magnitude uint32
	Real      [DftNumComponents]int16
	Imag      [DftNumComponents]int16
	First     int8
	Last      int8
	Mid       int8
	Zero      int8
}

// DftWindow bundles the per-axis antenna sweep for one pen sub-frame.
type DftWindow struct {
	X [DftMaxRows]DftWindowRow
	Y [DftMaxRows]DftWindowRow

	NumRows  uint8
	DataType DftDataType
	SeqNum   uint8

	// Group correlates this window with a preceding PenMetadata record
	// sharing the same SeqNum and DataType. Zero means no match was found.
	Group uint32
}

// Metadata is the controller's panel-to-screen mapping, surfaced but not
// interpreted by the core.
type Metadata struct {
	Rows, Columns uint32

	// Xx, Yx, Tx, Xy, Yy, Ty form a 2x3 affine transform.
	Xx, Yx, Tx float32
	Xy, Yy, Ty float32
}

// StylusRuntimeState is owned by the DFT stage: a running sample plus the
// complex phasor of the last valid position, used to disambiguate button
// vs. eraser by phase agreement. It is created once per pen session and
// persists until the session ends.
type StylusRuntimeState struct {
	Sample StylusSample

	LastReal int32
	LastImag int32
}

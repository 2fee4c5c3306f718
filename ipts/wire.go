package ipts

// Declarative layout of every on-wire record the decoder understands. All
// records are fixed-layout, little-endian and packed: there is no padding
// between fields, and every field is read individually through a Reader
// rather than mapped onto a Go struct, so host alignment never leaks in.

// FrameType identifies the top-level HID frame kind.
type FrameType uint16

const (
	FrameHid      FrameType = 0x01
	FrameHeatmap  FrameType = 0x02
	FrameMetadata FrameType = 0x03
	FrameLegacy   FrameType = 0x04
	FrameReports  FrameType = 0x05
)

// frameHeaderSize is the size of {size:u32, type:u16}.
const frameHeaderSize = 4 + 2

// ReportType identifies a report frame nested inside a Reports or Legacy
// container.
type ReportType uint8

const (
	ReportHeatmapDim  ReportType = 0x03
	ReportHeatmapData ReportType = 0x25
	ReportTimestamp   ReportType = 0x40
	ReportDftMetadata ReportType = 0x5F
	ReportDftWindow   ReportType = 0x5C
	ReportStylusV1    ReportType = 0x10
	ReportStylusV2    ReportType = 0x60
)

// The report type numbering for the two MPP stylus encodings differs
// between observed device generations (spec Open Question i). They are
// exposed as package variables so a host can retarget them for a specific
// controller firmware without forking the decoder.
var (
	ReportStylusMPP10  ReportType = 0x90
	ReportStylusMPP151 ReportType = 0x92
)

// reportHeaderSize is the size of {type:u8, flags:u8, size:u16}.
const reportHeaderSize = 1 + 1 + 2

// Legacy element type ordinals. Upstream firmware does not document these
// numerically; 1/2 are the ordinals this decoder assumes (see DESIGN.md).
const (
	legacyElementStylus uint32 = 1
	legacyElementTouch  uint32 = 2
)

// legacyElementHeaderSize is the size of a legacy {type:u32, size:u32}
// group header, whose declared size INCLUDES the header itself.
const legacyElementHeaderSize = 4 + 4

// stylusRecordHeaderSize is the size of {elements:u8, reserved[3], serial:u32}.
const stylusRecordHeaderSize = 1 + 3 + 4

// stylusV1SampleSize is the size of {reserved[4], mode:u8, x:u16, y:u16,
// pressure:u16, reserved2:u8}.
const stylusV1SampleSize = 4 + 1 + 2 + 2 + 2 + 1

// stylusV2SampleSize is the size of {timestamp:u16, mode:u16, x,y,pressure,
// altitude,azimuth:u16, reserved[2]}.
const stylusV2SampleSize = 2 + 2 + 2 + 2 + 2 + 2 + 2 + 2

// heatmapDimSize is the size of {height,width,y_min,y_max,x_min,x_max,z_min,z_max}.
const heatmapDimSize = 8

// heatmapContainerHeaderSize is the size of the top-level Heatmap frame's
// inner {size:u32} header.
const heatmapContainerHeaderSize = 4

// dftWindowHeaderSize is the size of {timestamp:u32, num_rows:u8, seq_num:u8,
// u1,u2,u3:u8, data_type:u8, pad:u16}.
const dftWindowHeaderSize = 4 + 1 + 1 + 1 + 1 + 1 + 1 + 2

// dftWindowRowSize is the size of {frequency:u32, magnitude:u32, real[9]:i16,
// imag[9]:i16, first,last,mid,zero:i8}.
const dftWindowRowSize = 4 + 4 + 2*DftNumComponents + 2*DftNumComponents + 1 + 1 + 1 + 1

// penMetadataHeaderSize is the size of the pen-metadata record's leading
// {reserved[6], seq_num:u8, data_type:u8} fields. Only these two trailing
// bytes are meaningful to the group-correlation logic; anything else in the
// report is treated as opaque per §4.2.
const penMetadataHeaderSize = 6 + 1 + 1

// metadataDimensionsSize is the size of {rows:u32, columns:u32}.
const metadataDimensionsSize = 4 + 4

// metadataTransformSize is the size of six little-endian float32 fields.
const metadataTransformSize = 4 * 6

type heatmapDim struct {
	height, width                 uint8
	yMin, yMax, xMin, xMax         uint8
	zMin, zMax                     uint8
}

func readHeatmapDim(r *Reader) (heatmapDim, error) {
	var d heatmapDim
	var err error
	if d.height, err = r.U8(); err != nil {
		return d, err
	}
	if d.width, err = r.U8(); err != nil {
		return d, err
	}
	if d.yMin, err = r.U8(); err != nil {
		return d, err
	}
	if d.yMax, err = r.U8(); err != nil {
		return d, err
	}
	if d.xMin, err = r.U8(); err != nil {
		return d, err
	}
	if d.xMax, err = r.U8(); err != nil {
		return d, err
	}
	if d.zMin, err = r.U8(); err != nil {
		return d, err
	}
	if d.zMax, err = r.U8(); err != nil {
		return d, err
	}
	return d, nil
}

type dftWindowHeader struct {
	timestamp            uint32
	numRows              uint8
	seqNum               uint8
	unknown1, unknown2, unknown3 uint8
	dataType             uint8
	pad                  uint16
}

func readDftWindowHeader(r *Reader) (dftWindowHeader, error) {
	var h dftWindowHeader
	var err error
	if h.timestamp, err = r.U32(); err != nil {
		return h, err
	}
	if h.numRows, err = r.U8(); err != nil {
		return h, err
	}
	if h.seqNum, err = r.U8(); err != nil {
		return h, err
	}
	if h.unknown1, err = r.U8(); err != nil {
		return h, err
	}
	if h.unknown2, err = r.U8(); err != nil {
		return h, err
	}
	if h.unknown3, err = r.U8(); err != nil {
		return h, err
	}
	if h.dataType, err = r.U8(); err != nil {
		return h, err
	}
	if h.pad, err = r.U16(); err != nil {
		return h, err
	}
	return h, nil
}

func readDftWindowRow(r *Reader) (DftWindowRow, error) {
	var row DftWindowRow
	var err error
	if row.Frequency, err = r.U32(); err != nil {
		return row, err
	}
	if row.Magnitude, err = r.U32(); err != nil {
		return row, err
	}
	for i := 0; i < DftNumComponents; i++ {
		if row.Real[i], err = r.I16(); err != nil {
			return row, err
		}
	}
	for i := 0; i < DftNumComponents; i++ {
		if row.Imag[i], err = r.I16(); err != nil {
			return row, err
		}
	}
	if row.First, err = r.I8(); err != nil {
		return row, err
	}
	if row.Last, err = r.I8(); err != nil {
		return row, err
	}
	if row.Mid, err = r.I8(); err != nil {
		return row, err
	}
	if row.Zero, err = r.I8(); err != nil {
		return row, err
	}
	return row, nil
}

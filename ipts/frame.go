package ipts

// FrameParser drives recursive descent over the nested IPTS container
// hierarchy and dispatches typed sub-records to a Sink. It owns the small
// amount of interior mutable state that spans frame boundaries: cached
// heatmap dimensions, a cached heatmap timestamp, and a cached pen-metadata
// record. A FrameParser is not re-entrant; a host that wants concurrent
// decoding must construct one instance per goroutine (§5).
type FrameParser struct {
	sink Sink

	invertX bool
	invertY bool

	dft   *DftProcessor
	state *StylusStateMachine

	haveDim bool
	dim     heatmapDim
	numCols int
	numRows int

	haveTimestamp bool
	timestamp     uint32

	havePenMeta bool
	penMetaSeq  uint8
	penMetaType uint8
	penMetaGrp  uint32
	nextGroup   uint32
}

// NewFrameParser builds a parser reporting decoded events to sink.
// invertX/invertY are host-supplied configuration, not parsed from the
// wire (§6). The parser takes no physical width/height; positions are
// emitted as unit-square coordinates.
func NewFrameParser(sink Sink, invertX, invertY bool) *FrameParser {
	return &FrameParser{
		sink:    sink,
		invertX: invertX,
		invertY: invertY,
		dft:     NewDftProcessor(),
		state:   NewStylusStateMachine(sink),
	}
}

// Parse skips headerBytes and decodes exactly one top-level HID frame from
// buf. It never reads past len(buf); a truncated frame returns
// ErrOutOfRange and any sink calls already made for records fully decoded
// before the overrun stand.
func (p *FrameParser) Parse(buf []byte, headerBytes int) error {
	r := NewReader(buf)
	if err := r.Skip(headerBytes); err != nil {
		return err
	}
	return p.parseHidFrame(r)
}

func (p *FrameParser) parseHidFrame(r *Reader) error {
	size, err := r.U32()
	if err != nil {
		return err
	}
	typ, err := r.U16()
	if err != nil {
		return err
	}

	payloadLen := int(size) - frameHeaderSize
	if payloadLen < 0 {
		return ErrOutOfRange
	}

	sub, err := r.Sub(payloadLen)
	if err != nil {
		return err
	}

	switch FrameType(typ) {
	case FrameHid:
		return p.parseHidContainer(sub)
	case FrameHeatmap:
		return p.parseHeatmapContainer(sub)
	case FrameMetadata:
		return p.parseMetadataFrame(sub)
	case FrameLegacy:
		return p.parseLegacyFrame(sub)
	case FrameReports:
		return p.parseReportsFrame(sub)
	default:
		// UnknownRecord: silently ignored, bounded by the declared size
		// (sub already reserved and discarded).
		return nil
	}
}

func (p *FrameParser) parseHidContainer(r *Reader) error {
	for r.Size() > 0 {
		if err := p.parseHidFrame(r); err != nil {
			return err
		}
	}
	return nil
}

func (p *FrameParser) parseHeatmapContainer(r *Reader) error {
	size, err := r.U32()
	if err != nil {
		return err
	}
	sub, err := r.Sub(int(size))
	if err != nil {
		return err
	}
	return p.parseHeatmapData(sub)
}

func (p *FrameParser) parseHeatmapData(r *Reader) error {
	if !p.haveDim {
		return nil
	}
	n := p.numCols * p.numRows
	data, err := r.SubSpan(n)
	if err != nil {
		return err
	}
	p.emitHeatmap(data)
	return nil
}

func (p *FrameParser) emitHeatmap(data []byte) {
	zMax := p.dim.zMax
	if zMax == 0 {
		zMax = 255
	}

	hm := Heatmap{
		Width:  p.dim.width,
		Height: p.dim.height,
		YMin:   p.dim.yMin,
		YMax:   p.dim.yMax,
		XMin:   p.dim.xMin,
		XMax:   p.dim.xMax,
		ZMin:   p.dim.zMin,
		ZMax:   zMax,
		Data:   data,
	}
	if p.haveTimestamp {
		hm.HasTimestamp = true
		hm.Timestamp = p.timestamp
		// A cached timestamp applies to exactly the next heatmap emission.
		p.haveTimestamp = false
	}

	p.sink.OnHeatmap(hm)
}

func (p *FrameParser) parseMetadataFrame(r *Reader) error {
	dims, err := readMetadataDimensions(r)
	if err != nil {
		return err
	}
	xform, err := readMetadataTransform(r)
	if err != nil {
		return err
	}
	// Unknown trailer: tolerated per §4.2, discarded with the container.
	if err := r.Skip(r.Size()); err != nil {
		return err
	}

	p.sink.OnMetadata(Metadata{
		Rows: dims.rows, Columns: dims.columns,
		Xx: xform.xx, Yx: xform.yx, Tx: xform.tx,
		Xy: xform.xy, Yy: xform.yy, Ty: xform.ty,
	})
	return nil
}

type metadataDimensions struct {
	rows, columns uint32
}

func readMetadataDimensions(r *Reader) (metadataDimensions, error) {
	var d metadataDimensions
	var err error
	if d.rows, err = r.U32(); err != nil {
		return d, err
	}
	if d.columns, err = r.U32(); err != nil {
		return d, err
	}
	return d, nil
}

type metadataTransform struct {
	xx, yx, tx float32
	xy, yy, ty float32
}

func readMetadataTransform(r *Reader) (metadataTransform, error) {
	var t metadataTransform
	var err error
	if t.xx, err = r.F32(); err != nil {
		return t, err
	}
	if t.yx, err = r.F32(); err != nil {
		return t, err
	}
	if t.tx, err = r.F32(); err != nil {
		return t, err
	}
	if t.xy, err = r.F32(); err != nil {
		return t, err
	}
	if t.yy, err = r.F32(); err != nil {
		return t, err
	}
	if t.ty, err = r.F32(); err != nil {
		return t, err
	}
	return t, nil
}

func (p *FrameParser) parseLegacyFrame(r *Reader) error {
	elements, err := r.U32()
	if err != nil {
		return err
	}

	for i := uint32(0); i < elements; i++ {
		typ, err := r.U32()
		if err != nil {
			return err
		}
		size, err := r.U32()
		if err != nil {
			return err
		}

		payloadLen := int(size) - legacyElementHeaderSize
		if payloadLen < 0 {
			return ErrOutOfRange
		}
		sub, err := r.Sub(payloadLen)
		if err != nil {
			return err
		}

		if typ == legacyElementStylus || typ == legacyElementTouch {
			if err := p.parseReportsFrame(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *FrameParser) parseReportsFrame(r *Reader) error {
	// Known malformed probe packet on certain devices: a bare 4-byte
	// "reports" container carries no records at all.
	if r.Size() == 4 {
		return nil
	}

	for r.Size() > 0 {
		if err := p.parseReportFrame(r); err != nil {
			return err
		}
	}
	return nil
}

func (p *FrameParser) parseReportFrame(r *Reader) error {
	typ, err := r.U8()
	if err != nil {
		return err
	}
	if _, err := r.U8(); err != nil { // flags: unused by the core
		return err
	}
	size, err := r.U16()
	if err != nil {
		return err
	}

	sub, err := r.Sub(int(size))
	if err != nil {
		return err
	}

	rt := ReportType(typ)
	switch {
	case rt == ReportStylusV1:
		return p.parseStylusReport(sub, stylusVariantV1)
	case rt == ReportStylusV2:
		return p.parseStylusReport(sub, stylusVariantV2)
	case rt == ReportStylusMPP10:
		return p.parseStylusReport(sub, stylusVariantMPP10)
	case rt == ReportStylusMPP151:
		return p.parseStylusReport(sub, stylusVariantMPP151)
	case rt == ReportHeatmapDim:
		return p.parseHeatmapDimReport(sub)
	case rt == ReportHeatmapData:
		return p.parseHeatmapData(sub)
	case rt == ReportTimestamp:
		return p.parseTimestampReport(sub)
	case rt == ReportDftMetadata:
		return p.parseDftMetadataReport(sub)
	case rt == ReportDftWindow:
		return p.parseDftWindowReport(sub)
	default:
		// UnknownRecord: bounded by size, already discarded.
		return nil
	}
}

func (p *FrameParser) parseHeatmapDimReport(r *Reader) error {
	dim, err := readHeatmapDim(r)
	if err != nil {
		return err
	}
	if !p.haveDim || p.dim.width != dim.width || p.dim.height != dim.height {
		p.numCols = int(dim.width)
		p.numRows = int(dim.height)
	}
	p.dim = dim
	p.haveDim = true
	return nil
}

func (p *FrameParser) parseTimestampReport(r *Reader) error {
	ts, err := r.U32()
	if err != nil {
		return err
	}
	p.timestamp = ts
	p.haveTimestamp = true
	return nil
}

func (p *FrameParser) parseDftMetadataReport(r *Reader) error {
	if err := r.Skip(6); err != nil {
		return err
	}
	seq, err := r.U8()
	if err != nil {
		return err
	}
	dtype, err := r.U8()
	if err != nil {
		return err
	}
	// Remainder of the report is opaque to this decoder.
	if err := r.Skip(r.Size()); err != nil {
		return err
	}

	p.nextGroup++
	p.penMetaSeq = seq
	p.penMetaType = dtype
	p.penMetaGrp = p.nextGroup
	p.havePenMeta = true
	return nil
}

func (p *FrameParser) parseDftWindowReport(r *Reader) error {
	hdr, err := readDftWindowHeader(r)
	if err != nil {
		return err
	}

	var window DftWindow
	window.NumRows = hdr.numRows
	window.DataType = DftDataType(hdr.dataType)
	window.SeqNum = hdr.seqNum

	n := int(hdr.numRows)
	if n > DftMaxRows {
		n = DftMaxRows
	}
	for i := 0; i < n; i++ {
		row, err := readDftWindowRow(r)
		if err != nil {
			return err
		}
		window.X[i] = row
	}
	for i := 0; i < n; i++ {
		row, err := readDftWindowRow(r)
		if err != nil {
			return err
		}
		window.Y[i] = row
	}

	if p.havePenMeta && p.penMetaSeq == hdr.seqNum && p.penMetaType == hdr.dataType {
		window.Group = p.penMetaGrp
	}

	p.sink.OnDft(window)
	p.dft.Process(window, p.state, p.numCols, p.numRows, p.invertX, p.invertY)
	return nil
}

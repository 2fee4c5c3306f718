package ipts

import (
	"math"
	"testing"
)

func newTestParser() (*FrameParser, *recordSink) {
	sink := &recordSink{}
	return NewFrameParser(sink, false, false), sink
}

// S1 — a StylusV2 report with every mode bit but rubber set.
func TestParseStylusV2Contact(t *testing.T) {
	p, sink := newTestParser()

	sample := stylusV2Sample(0, 0b0111, 4800, 3600, 2048, 9000, 0)
	record := stylusRecord(0xDEADBEEF, sample)
	report := reportFrame(ReportStylusV2, record)
	buf := hidFrame(FrameReports, reportsPayload(report))

	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.stylus) != 1 {
		t.Fatalf("got %d stylus samples, want 1", len(sink.stylus))
	}
	got := sink.stylus[0]
	if !got.Proximity || !got.Contact || !got.Button || got.Rubber {
		t.Fatalf("flags = %+v, want proximity/contact/button set, rubber clear", got)
	}
	if got.X != 0.5 || got.Y != 0.5 || got.Pressure != 0.5 {
		t.Fatalf("got X=%v Y=%v Pressure=%v, want 0.5 each", got.X, got.Y, got.Pressure)
	}
	if math.Abs(got.Altitude-math.Pi/2) > 1e-9 {
		t.Fatalf("got Altitude=%v, want pi/2", got.Altitude)
	}
	if got.Serial != 0xDEADBEEF {
		t.Fatalf("got Serial=%#x, want 0xDEADBEEF", got.Serial)
	}
}

// S4 — a bare 4-byte reports container is a known probe packet, not an
// error and not a record.
func TestParseReportsProbePacketIsIgnored(t *testing.T) {
	p, sink := newTestParser()

	buf := hidFrame(FrameReports, []byte{0, 0, 0, 0})
	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.stylus)+len(sink.heat)+len(sink.dfts)+len(sink.metas) != 0 {
		t.Fatalf("probe packet produced sink calls: %+v", sink)
	}
}

// S5 — a heatmap whose declared z_max is 0 is coerced to the full 8-bit
// range (0 is not a meaningful maximum on the wire).
func TestParseHeatmapZeroZMaxCoercedTo255(t *testing.T) {
	p, sink := newTestParser()

	dim := heatmapDimReport(2, 3, 0, 100, 0, 100, 0, 0)
	data := []byte{10, 20, 30, 40, 50, 60}
	dataReport := reportFrame(ReportHeatmapData, data)
	buf := hidFrame(FrameReports, reportsPayload(dim, dataReport))

	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.heat) != 1 {
		t.Fatalf("got %d heatmaps, want 1", len(sink.heat))
	}
	hm := sink.heat[0]
	if hm.ZMax != 255 {
		t.Fatalf("got ZMax=%d, want 255", hm.ZMax)
	}
	if hm.Width != 3 || hm.Height != 2 {
		t.Fatalf("got Width=%d Height=%d, want 3x2", hm.Width, hm.Height)
	}
	if string(hm.Data) != string(data) {
		t.Fatalf("got Data=%v, want %v", hm.Data, data)
	}
	if hm.HasTimestamp {
		t.Fatal("no timestamp report was sent, HasTimestamp should be false")
	}
}

func TestParseHeatmapCarriesCachedTimestampOnce(t *testing.T) {
	p, sink := newTestParser()

	dim := heatmapDimReport(1, 2, 0, 1, 0, 1, 0, 1)
	ts := timestampReport(123456)
	data1 := reportFrame(ReportHeatmapData, []byte{1, 2})
	data2 := reportFrame(ReportHeatmapData, []byte{3, 4})
	buf := hidFrame(FrameReports, reportsPayload(dim, ts, data1, data2))

	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.heat) != 2 {
		t.Fatalf("got %d heatmaps, want 2", len(sink.heat))
	}
	if !sink.heat[0].HasTimestamp || sink.heat[0].Timestamp != 123456 {
		t.Fatalf("first heatmap = %+v, want cached timestamp", sink.heat[0])
	}
	if sink.heat[1].HasTimestamp {
		t.Fatalf("second heatmap = %+v, timestamp should have been consumed", sink.heat[1])
	}
}

// S6 — a frame whose declared size overruns the actual buffer must fail
// with ErrOutOfRange rather than reading past the end.
func TestParseCorruptTrailerIsOutOfRange(t *testing.T) {
	p, _ := newTestParser()

	buf := concat(le(uint32(100), uint16(FrameReports)), make([]byte, 54))
	if err := p.Parse(buf, 0); err != ErrOutOfRange {
		t.Fatalf("Parse() = %v, want ErrOutOfRange", err)
	}
}

// S7 — a Metadata frame round-trips its affine transform and tolerates an
// unknown trailer.
func TestParseMetadataRoundTrip(t *testing.T) {
	p, sink := newTestParser()

	body := concat(
		le(uint32(64), uint32(44)),
		le(float32(1), float32(0), float32(0), float32(0), float32(1), float32(0)),
		[]byte{0xAA, 0xBB, 0xCC, 0xDD}, // unknown trailer, tolerated
	)
	buf := hidFrame(FrameMetadata, body)

	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.metas) != 1 {
		t.Fatalf("got %d metadata records, want 1", len(sink.metas))
	}
	m := sink.metas[0]
	if m.Rows != 64 || m.Columns != 44 {
		t.Fatalf("got Rows=%d Columns=%d, want 64x44", m.Rows, m.Columns)
	}
	if m.Xx != 1 || m.Yy != 1 || m.Yx != 0 || m.Xy != 0 || m.Tx != 0 || m.Ty != 0 {
		t.Fatalf("got transform %+v, want identity", m)
	}
	if len(sink.stylus) != 0 || len(sink.heat) != 0 || len(sink.dfts) != 0 {
		t.Fatalf("metadata frame produced unrelated sink calls: %+v", sink)
	}
}

// S8 — a DFT window sharing seq_num/data_type with a preceding PenMetadata
// record in the same pass is tagged with that record's group; a window
// with no matching metadata is not.
func TestParseDftWindowGroupCorrelation(t *testing.T) {
	p, sink := newTestParser()

	meta := penMetadataReport(7, uint8(DftPosition))
	oneRow := makeRow(0, 0, nil)
	matched := dftWindowReport(0, 1, 7, uint8(DftPosition), [][]byte{oneRow}, [][]byte{oneRow})
	buf := hidFrame(FrameReports, reportsPayload(meta, matched))

	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.dfts) != 1 {
		t.Fatalf("got %d dft windows, want 1", len(sink.dfts))
	}
	if sink.dfts[0].Group == 0 {
		t.Fatalf("window matching cached metadata got Group=0, want nonzero")
	}
	firstGroup := sink.dfts[0].Group

	mismatched := dftWindowReport(0, 1, 9, uint8(DftPosition), [][]byte{oneRow}, [][]byte{oneRow})
	buf2 := hidFrame(FrameReports, reportsPayload(mismatched))
	if err := p.Parse(buf2, 0); err != nil {
		t.Fatalf("Parse (2): %v", err)
	}
	if len(sink.dfts) != 2 {
		t.Fatalf("got %d dft windows, want 2", len(sink.dfts))
	}
	if sink.dfts[1].Group != 0 {
		t.Fatalf("window with mismatched seq_num got Group=%d, want 0", sink.dfts[1].Group)
	}

	// A second matching metadata/window pair gets a distinct, later group.
	meta2 := penMetadataReport(7, uint8(DftPosition))
	matched2 := dftWindowReport(0, 1, 7, uint8(DftPosition), [][]byte{oneRow}, [][]byte{oneRow})
	buf3 := hidFrame(FrameReports, reportsPayload(meta2, matched2))
	if err := p.Parse(buf3, 0); err != nil {
		t.Fatalf("Parse (3): %v", err)
	}
	if sink.dfts[2].Group == 0 || sink.dfts[2].Group == firstGroup {
		t.Fatalf("got Group=%d, want a fresh nonzero group distinct from %d", sink.dfts[2].Group, firstGroup)
	}
}

// A Hid container recurses into its nested frames rather than treating
// them as opaque payload.
func TestParseHidContainerRecurses(t *testing.T) {
	p, sink := newTestParser()

	inner := hidFrame(FrameReports, reportsPayload(timestampReportNoop()))
	outer := hidFrame(FrameHid, inner)

	if err := p.Parse(outer, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// A lone timestamp report caches state but emits nothing by itself;
	// this only confirms recursion doesn't error or hang.
	if len(sink.stylus)+len(sink.heat)+len(sink.dfts)+len(sink.metas) != 0 {
		t.Fatalf("unexpected sink activity: %+v", sink)
	}
}

func timestampReportNoop() []byte {
	return timestampReport(1)
}

// A Legacy frame's Stylus-typed element is unwrapped as a nested Reports
// container.
func TestParseLegacyStylusElement(t *testing.T) {
	p, sink := newTestParser()

	sample := stylusV1Sample(0b0011, 100, 200, 512)
	record := stylusRecord(42, sample)
	report := reportFrame(ReportStylusV1, record)
	reportsBody := reportsPayload(report)

	element := concat(le(legacyElementStylus, uint32(len(reportsBody)+legacyElementHeaderSize)), reportsBody)
	buf := hidFrame(FrameLegacy, concat(le(uint32(1)), element))

	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.stylus) != 1 {
		t.Fatalf("got %d stylus samples, want 1", len(sink.stylus))
	}
	got := sink.stylus[0]
	if !got.Proximity || !got.Contact || got.Button {
		t.Fatalf("flags = %+v, want proximity+contact set, button clear", got)
	}
}

func TestParseUnknownFrameTypeIgnored(t *testing.T) {
	p, sink := newTestParser()

	buf := hidFrame(FrameType(0xEE), []byte{1, 2, 3, 4})
	if err := p.Parse(buf, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.stylus)+len(sink.heat)+len(sink.dfts)+len(sink.metas) != 0 {
		t.Fatalf("unknown frame type produced sink calls: %+v", sink)
	}
}

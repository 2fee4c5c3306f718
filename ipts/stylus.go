package ipts

import "math"

// stylusVariant distinguishes the four historical stylus sample encodings
// (§4.4). All four share the same {elements, reserved, serial} record
// header; only the per-sample payload layout and a couple of semantic
// rules (contact source, pressure scale) differ.
type stylusVariant int

const (
	stylusVariantV1 stylusVariant = iota
	stylusVariantV2
	stylusVariantMPP10
	stylusVariantMPP151
)

const (
	modeBitProximity = 0
	modeBitContact   = 1
	modeBitButton    = 2
	modeBitRubber    = 3
)

func modeBit(mode uint32, bit uint) bool {
	return mode&(1<<bit) != 0
}

func (p *FrameParser) parseStylusReport(r *Reader, variant stylusVariant) error {
	elements, err := r.U8()
	if err != nil {
		return err
	}
	if err := r.Skip(3); err != nil {
		return err
	}
	serial, err := r.U32()
	if err != nil {
		return err
	}

	for i := uint8(0); i < elements; i++ {
		sample, err := decodeStylusSample(r, variant)
		if err != nil {
			return err
		}
		if i == elements-1 {
			sample.Serial = serial
			p.sink.OnStylus(sample)
		}
	}
	return nil
}

func decodeStylusSample(r *Reader, variant stylusVariant) (StylusSample, error) {
	switch variant {
	case stylusVariantV1, stylusVariantMPP10:
		return decodeStylusLegacyLayout(r, variant == stylusVariantMPP10, MaxPressureV1)
	default:
		return decodeStylusTiltLayout(r, variant == stylusVariantMPP151, MaxPressureV2)
	}
}

// decodeStylusLegacyLayout reads the 12-byte V1/MPP_1_0 sample:
// {reserved[4], mode:u8, x:u16, y:u16, pressure:u16, reserved2:u8}.
func decodeStylusLegacyLayout(r *Reader, isMPP bool, pressureMax float64) (StylusSample, error) {
	var s StylusSample

	if err := r.Skip(4); err != nil {
		return s, err
	}
	mode, err := r.U8()
	if err != nil {
		return s, err
	}
	x, err := r.U16()
	if err != nil {
		return s, err
	}
	y, err := r.U16()
	if err != nil {
		return s, err
	}
	pressure, err := r.U16()
	if err != nil {
		return s, err
	}
	if err := r.Skip(1); err != nil {
		return s, err
	}

	m := uint32(mode)
	s.Proximity = modeBit(m, modeBitProximity)
	s.Button = modeBit(m, modeBitButton)
	s.Rubber = modeBit(m, modeBitRubber)
	s.X = float64(x) / MaxX
	s.Y = float64(y) / MaxY
	s.Pressure = float64(pressure) / pressureMax

	if isMPP {
		s.Contact = pressure > 0
	} else {
		s.Contact = modeBit(m, modeBitContact)
	}
	return s, nil
}

// decodeStylusTiltLayout reads the 16-byte V2/MPP_1_51 sample:
// {timestamp:u16, mode:u16, x,y,pressure,altitude,azimuth:u16, reserved[2]}.
func decodeStylusTiltLayout(r *Reader, isMPP bool, pressureMax float64) (StylusSample, error) {
	var s StylusSample

	timestamp, err := r.U16()
	if err != nil {
		return s, err
	}
	mode, err := r.U16()
	if err != nil {
		return s, err
	}
	x, err := r.U16()
	if err != nil {
		return s, err
	}
	y, err := r.U16()
	if err != nil {
		return s, err
	}
	pressure, err := r.U16()
	if err != nil {
		return s, err
	}
	altitude, err := r.U16()
	if err != nil {
		return s, err
	}
	azimuth, err := r.U16()
	if err != nil {
		return s, err
	}
	if err := r.Skip(2); err != nil {
		return s, err
	}

	m := uint32(mode)
	s.Proximity = modeBit(m, modeBitProximity)
	s.Button = modeBit(m, modeBitButton)
	s.Rubber = modeBit(m, modeBitRubber)
	s.X = float64(x) / MaxX
	s.Y = float64(y) / MaxY
	s.Pressure = float64(pressure) / pressureMax
	s.Altitude = float64(altitude) * math.Pi / radiansPerUnit
	s.Azimuth = float64(azimuth) * math.Pi / radiansPerUnit
	s.Timestamp = timestamp

	if isMPP {
		s.Contact = pressure > 0
	} else {
		s.Contact = modeBit(m, modeBitContact)
	}
	return s, nil
}

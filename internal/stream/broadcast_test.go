package stream

import (
	"log/slog"
	"testing"

	"iptsd/ipts"
)

func TestAutoRangeEmptyData(t *testing.T) {
	lo, hi := autoRange(nil)
	if lo != 0 || hi != 0 {
		t.Fatalf("autoRange(nil) = (%v, %v), want (0, 0)", lo, hi)
	}
}

func TestAutoRangeFindsMinMax(t *testing.T) {
	lo, hi := autoRange([]byte{200, 10, 255, 0, 128})
	if lo != 0 || hi != 255 {
		t.Fatalf("autoRange() = (%v, %v), want (0, 255)", lo, hi)
	}
}

// Broadcaster must satisfy ipts.Sink so it can be registered directly on
// a FrameParser; broadcasting to zero clients must not panic or block.
func TestBroadcasterImplementsSinkAndToleratesNoClients(t *testing.T) {
	var _ ipts.Sink = NewBroadcaster(slog.Default())

	b := NewBroadcaster(slog.Default())
	b.OnStylus(ipts.StylusSample{Proximity: true, X: 0.5, Y: 0.5})
	b.OnHeatmap(ipts.Heatmap{Width: 2, Height: 1, Data: []byte{1, 2}})
	b.OnDft(ipts.DftWindow{})
	b.OnMetadata(ipts.Metadata{})
}

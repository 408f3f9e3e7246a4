package stage

import "fmt"

// Kind names an inbound event.
type Kind string

const (
	KindMarker        Kind = "marker"
	KindReveal        Kind = "reveal"
	KindSeries        Kind = "series"
	KindRTT           Kind = "rtt"
	KindRoundTripTime Kind = "roundTripTime"
	KindEnd           Kind = "end"
	KindMessage       Kind = "message"
)

// legacyKinds are the keys recognised in the single-key payload form, in
// lookup order.
var legacyKinds = []Kind{KindSeries, KindMarker, KindReveal, KindRTT, KindRoundTripTime, KindEnd, KindMessage}

// textual reports whether the event data is a string rather than a number.
func (k Kind) textual() bool {
	return k == KindSeries || k == KindMessage
}

// Event is one decoded message from a Source.
type Event struct {
	Kind Kind
	// Number carries numeric data: marker index, reveal fraction, rtt in ms.
	Number float64
	// Text carries string data: series name, free-form message.
	Text  string
	Label string
}

func (e Event) String() string {
	if e.Kind.textual() {
		return fmt.Sprintf("%s(%q)", e.Kind, e.Text)
	}
	return fmt.Sprintf("%s(%g)", e.Kind, e.Number)
}

// Marker builds a marker event.
func Marker(n int) Event { return Event{Kind: KindMarker, Number: float64(n)} }

// Reveal builds a reveal event for fraction p in [0, 1].
func Reveal(p float64) Event { return Event{Kind: KindReveal, Number: p} }

// Series builds a series event.
func Series(name, label string) Event { return Event{Kind: KindSeries, Text: name, Label: label} }

// RTT builds a round trip time event in milliseconds.
func RTT(ms float64) Event { return Event{Kind: KindRTT, Number: ms} }

// End builds an end-of-round event.
func End() Event { return Event{Kind: KindEnd} }

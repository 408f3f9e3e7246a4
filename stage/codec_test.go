package stage_test

import (
	"errors"
	"testing"

	"github.com/Swind/choreo/stage"
	"github.com/vmihailenco/msgpack/v5"
)

func TestJSONCodec_DecodeForms(t *testing.T) {
	codec := stage.NewJSONCodec()

	tests := []struct {
		name    string
		payload string
		want    stage.Event
	}{
		{name: "tagged marker", payload: `{"type":"marker","data":3}`, want: stage.Marker(3)},
		{name: "tagged reveal", payload: `{ "type": "reveal", "data": 0.4 }`, want: stage.Reveal(0.4)},
		{name: "tagged series with label", payload: `{"type":"series","data":"series2","label":"Series 2"}`, want: stage.Series("series2", "Series 2")},
		{name: "tagged end", payload: `{"type":"end"}`, want: stage.End()},
		{name: "tagged round trip", payload: `{"type":"roundTripTime","data":120}`, want: stage.Event{Kind: stage.KindRoundTripTime, Number: 120}},
		{name: "legacy series", payload: `{"series":"series1"}`, want: stage.Series("series1", "")},
		{name: "legacy series with label", payload: `{"series":"series1","label":"Series 1"}`, want: stage.Series("series1", "Series 1")},
		{name: "legacy marker", payload: `{"marker":1}`, want: stage.Marker(1)},
		{name: "legacy reveal", payload: `{"reveal":0.1}`, want: stage.Reveal(0.1)},
		{name: "legacy message", payload: `{"message":"A new client has joined"}`, want: stage.Event{Kind: stage.KindMessage, Text: "A new client has joined"}},
		{name: "unknown tagged kind", payload: `{"type":"confetti","data":1}`, want: stage.Event{Kind: "confetti", Number: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Decode = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestJSONCodec_NotAnEvent(t *testing.T) {
	codec := stage.NewJSONCodec()

	for _, payload := range []string{
		"Finished loop - restarting in 1 seconds",
		`"A new client has joined"`,
		`42`,
		`{"unrelated":true}`,
	} {
		if _, err := codec.Decode([]byte(payload)); !errors.Is(err, stage.ErrNotAnEvent) {
			t.Errorf("Decode(%q) err = %v, want ErrNotAnEvent", payload, err)
		}
	}
}

func TestJSONCodec_MalformedObject(t *testing.T) {
	codec := stage.NewJSONCodec()

	_, err := codec.Decode([]byte(`{"type":`))
	if err == nil || errors.Is(err, stage.ErrNotAnEvent) {
		t.Fatalf("err = %v, want a parse error", err)
	}
	_, err = codec.Decode([]byte(`{"type":7}`))
	if err == nil {
		t.Fatal("numeric type should be rejected")
	}
	_, err = codec.Decode([]byte(`{"type":"marker","data":[1]}`))
	if err == nil {
		t.Fatal("array data should be rejected")
	}
}

func TestCodecs_EncodeDecode(t *testing.T) {
	events := []stage.Event{
		stage.Marker(7),
		stage.Reveal(0.3),
		stage.Series("series4", "Series 4"),
		stage.RTT(250),
		stage.End(),
	}

	for _, name := range []string{"json", "msgpack"} {
		codec, err := stage.NewCodec(name)
		if err != nil {
			t.Fatalf("NewCodec(%s) failed: %v", name, err)
		}
		if codec.Name() != name {
			t.Errorf("Name() = %q, want %q", codec.Name(), name)
		}
		for _, ev := range events {
			data, err := codec.Encode(ev)
			if err != nil {
				t.Fatalf("%s Encode(%v) failed: %v", name, ev, err)
			}
			got, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("%s Decode(%v) failed: %v", name, ev, err)
			}
			if got != ev {
				t.Errorf("%s: got %+v, want %+v", name, got, ev)
			}
		}
	}
}

func TestMsgpackCodec_DecodesLegacyMap(t *testing.T) {
	// Integers are packed in their smallest msgpack form.
	data, err := msgpack.Marshal(map[string]any{"marker": 2})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}

	got, err := stage.NewMsgpackCodec().Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != stage.Marker(2) {
		t.Fatalf("Decode = %+v, want marker(2)", got)
	}
}

func TestMsgpackCodec_NotAnEvent(t *testing.T) {
	data, err := msgpack.Marshal("Finished loop")
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	if _, err := stage.NewMsgpackCodec().Decode(data); !errors.Is(err, stage.ErrNotAnEvent) {
		t.Fatalf("err = %v, want ErrNotAnEvent", err)
	}
}

func TestNewCodec_Unknown(t *testing.T) {
	if _, err := stage.NewCodec("xml"); err == nil {
		t.Fatal("NewCodec(xml) should fail")
	}
}

func TestEncode_RejectsEmptyKind(t *testing.T) {
	if _, err := stage.NewJSONCodec().Encode(stage.Event{}); err == nil {
		t.Fatal("empty kind should be rejected")
	}
}

package wire

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		frame Frame
	}{
		{
			name: "rank reply",
			frame: Frame{
				Service: "rank",
				Data: map[string]any{
					"rank":      uint64(1),
					"timestamp": "2026-08-01T00:00:00Z",
					"clock":     uint64(4),
				},
			},
		},
		{
			name: "list reply with nested peers",
			frame: Frame{
				Service: "list",
				Data: map[string]any{
					"clock": uint64(9),
					"list": []map[string]any{
						{"id": "A", "rank": uint64(1), "endpoint": "tcp://a:5570"},
						{"id": "B", "rank": uint64(2), "endpoint": "tcp://b:5570"},
					},
				},
			},
		},
		{
			name: "error reply",
			frame: Frame{
				Service: "erro",
				Data: map[string]any{
					"status":      "erro",
					"description": "unknown service",
				},
			},
		},
		{
			name:  "empty data",
			frame: Frame{Service: "heartbeat", Data: map[string]any{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.frame)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decoded.Service != tc.frame.Service {
				t.Fatalf("service mismatch: got %q want %q", decoded.Service, tc.frame.Service)
			}
			for k, want := range tc.frame.Data {
				got, ok := decoded.Data[k]
				if !ok {
					t.Fatalf("missing key %q in decoded data", k)
				}
				if list, ok := want.([]map[string]any); ok {
					gotList, ok := got.([]any)
					if !ok || len(gotList) != len(list) {
						t.Fatalf("key %q: list shape mismatch: got %#v", k, got)
					}
					for i, m := range list {
						gm, ok := gotList[i].(map[string]any)
						if !ok || !reflect.DeepEqual(gm, m) {
							t.Fatalf("key %q[%d]: got %#v want %#v", k, i, gotList[i], m)
						}
					}
					continue
				}
				if !reflect.DeepEqual(got, want) {
					t.Fatalf("key %q: got %#v want %#v", k, got, want)
				}
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected error decoding garbage bytes")
	}
}

func TestStringFieldHelpers(t *testing.T) {
	data := map[string]any{
		"name":  "replica-a",
		"count": uint64(3),
		"ok":    true,
		"peer":  map[string]any{"id": "x"},
		"items": []any{"a", "b"},
	}

	if got := StringField(data, "name"); got != "replica-a" {
		t.Fatalf("StringField: got %q", got)
	}
	if got := StringField(data, "count"); got != "" {
		t.Fatalf("StringField on wrong type should return zero value, got %q", got)
	}
	if got := Uint64Field(data, "count"); got != 3 {
		t.Fatalf("Uint64Field: got %d", got)
	}
	if got := BoolField(data, "ok"); !got {
		t.Fatal("BoolField: expected true")
	}
	if got := MapField(data, "peer"); got == nil || got["id"] != "x" {
		t.Fatalf("MapField: got %#v", got)
	}
	if got := ListField(data, "items"); len(got) != 2 {
		t.Fatalf("ListField: got %#v", got)
	}
	if got := MapField(data, "missing"); got != nil {
		t.Fatalf("MapField on missing key should be nil, got %#v", got)
	}
}

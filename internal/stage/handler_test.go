package stage

import (
	"context"
	"testing"
)

func TestPayloadCloneIsDeep(t *testing.T) {
	original := Payload{
		"name":   "Ada",
		"fields": map[string]any{"owner": "x"},
		"tags":   []any{"a", map[string]any{"k": "v"}},
		"nested": Payload{"n": 1},
	}
	clone := original.Clone()
	clone["name"] = "Grace"
	clone["fields"].(map[string]any)["owner"] = "y"
	clone["tags"].([]any)[1].(map[string]any)["k"] = "changed"
	clone["nested"].(Payload)["n"] = 2

	if original["name"] != "Ada" {
		t.Fatalf("top-level value mutated: %v", original["name"])
	}
	if original["fields"].(map[string]any)["owner"] != "x" {
		t.Fatal("nested map mutated through clone")
	}
	if original["tags"].([]any)[1].(map[string]any)["k"] != "v" {
		t.Fatal("map inside slice mutated through clone")
	}
	if original["nested"].(Payload)["n"] != 1 {
		t.Fatal("nested payload mutated through clone")
	}
	if Payload(nil).Clone() != nil {
		t.Fatal("expected nil clone of nil payload")
	}
}

func TestHandlerFunc(t *testing.T) {
	h := HandlerFunc(func(_ context.Context, in Payload) (Payload, error) {
		out := in.Clone()
		out["seen"] = true
		return out, nil
	})
	out, err := h.Handle(context.Background(), Payload{"a": 1})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out["seen"] != true || out["a"] != 1 {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := Healthy("fetch"); !h.Ready || h.Name != "fetch" {
		t.Fatalf("unexpected healthy record %+v", h)
	}
	if h := Unhealthy("notify", "webhook unset"); h.Ready || h.Detail != "webhook unset" {
		t.Fatalf("unexpected unhealthy record %+v", h)
	}
}

package banner

import (
	"strings"
	"testing"
)

func TestRenderIncludesTitleAndFields(t *testing.T) {
	out := Render("chatmesh registry", Field{Label: "addr", Value: "127.0.0.1:5560"})
	if !strings.Contains(out, "chatmesh registry") {
		t.Fatalf("expected title in output, got %q", out)
	}
	if !strings.Contains(out, "127.0.0.1:5560") {
		t.Fatalf("expected field value in output, got %q", out)
	}
}

package view

import (
	"strings"
	"testing"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out, err := RenderMarkdown("**Mid-term** schedule\n\n<script>alert(1)</script>\n\nSee https://example.edu")
	if err != nil {
		t.Fatalf("RenderMarkdown returned error: %v", err)
	}
	html := string(out)
	if !strings.Contains(html, "<strong>Mid-term</strong>") {
		t.Fatalf("expected bold text, got %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("expected script to be stripped, got %s", html)
	}
	if !strings.Contains(html, `href="https://example.edu"`) {
		t.Fatalf("expected linkified url, got %s", html)
	}
}

func TestTipStyleFor(t *testing.T) {
	style := TipStyleFor(" Sleep ")
	if style.Key != "sleep" || style.Color != "lavender" || !strings.Contains(string(style.Icon), "<svg") {
		t.Fatalf("unexpected style: %+v", style)
	}

	fallback := TipStyleFor("unknown")
	if fallback.Key != "great" {
		t.Fatalf("expected default style, got %+v", fallback)
	}
}

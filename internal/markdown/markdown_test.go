package markdown

import (
	"strings"
	"testing"
)

func TestRenderEmpty(t *testing.T) {
	if got := Render(""); got != "" {
		t.Errorf("Render(\"\") = %q, want \"\"", got)
	}
}

func TestRenderBasicMarkdown(t *testing.T) {
	html := Render("**bold** and *italic*")
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("Expected <strong>bold</strong>, got: %s", html)
	}
	if !strings.Contains(html, "<em>italic</em>") {
		t.Errorf("Expected <em>italic</em>, got: %s", html)
	}
}

func TestRenderGFMTable(t *testing.T) {
	md := "| A | B |\n|---|---|\n| 1 | 2 |"
	html := Render(md)
	if !strings.Contains(html, "<table>") {
		t.Errorf("Expected table HTML, got: %s", html)
	}
}

func TestRenderGFMStrikethrough(t *testing.T) {
	html := Render("~~deleted~~")
	if !strings.Contains(html, "<del>deleted</del>") {
		t.Errorf("Expected <del>deleted</del>, got: %s", html)
	}
}

func TestRenderCodeBlock(t *testing.T) {
	html := Render("```go\nfunc main() {}\n```")
	if !strings.Contains(html, "<pre") {
		t.Errorf("Expected <pre> block, got: %s", html)
	}
}

func TestRenderExternalLinks(t *testing.T) {
	html := Render("[Google](https://google.com)")
	if !strings.Contains(html, `target="_blank"`) {
		t.Errorf("Expected target=_blank on external link, got: %s", html)
	}
	if !strings.Contains(html, `rel="noopener noreferrer"`) {
		t.Errorf("Expected rel=noopener on external link, got: %s", html)
	}
}

func TestRenderInternalLinks(t *testing.T) {
	html := Render("[page](/about)")
	if strings.Contains(html, `target="_blank"`) {
		t.Errorf("Internal link should NOT have target=_blank, got: %s", html)
	}
}

func TestRenderHardWraps(t *testing.T) {
	html := Render("line1\nline2")
	if !strings.Contains(html, "<br") {
		t.Errorf("Expected hard wrap <br>, got: %s", html)
	}
}

package app

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
)

func TestBuildStyleConfigDisablesDocumentOuterMargins(t *testing.T) {
	cfg := buildStyleConfig()
	if cfg.Document.StylePrimitive.BlockPrefix != "" || cfg.Document.StylePrimitive.BlockSuffix != "" {
		t.Fatalf("expected empty document block prefix and suffix")
	}
	if cfg.Document.Margin == nil || *cfg.Document.Margin != 0 {
		t.Fatalf("expected document margin 0")
	}
}

func TestRenderMarkdownRespectsWidth(t *testing.T) {
	out := renderMarkdown("**탐색** 단계에서 감정 인식에 대해 조금 더 이야기해 볼까요? 천천히 말씀해 주세요.", 24)
	if out == "" {
		t.Fatalf("expected rendered output")
	}
	for _, line := range strings.Split(out, "\n") {
		if w := xansi.StringWidth(line); w > 24 {
			t.Fatalf("line exceeds width: %d %q", w, line)
		}
	}
	if strings.Contains(xansi.Strip(out), "**") {
		t.Fatalf("expected emphasis markers to be rendered: %q", out)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	cases := map[string]string{
		"# 제목":      "\\# 제목",
		"1. 첫째":     "\\1. 첫째",
		"- 항목":      "\\- 항목",
		"`code`":    "\\`code\\`",
		"평범한 문장입니다": "평범한 문장입니다",
	}
	for in, want := range cases {
		if got := escapeMarkdown(in); got != want {
			t.Fatalf("escapeMarkdown(%q) = %q, want %q", in, got, want)
		}
	}
}

package ui

import (
	"os"
	"strings"
	"testing"
)

func TestRenderMarkdown_Plain(t *testing.T) {
	md := "# Title\n\n- [ ] item\n"
	if got := RenderMarkdown(md, true); got != md {
		t.Errorf("plain render changed text: %q", got)
	}
}

func TestRenderMarkdown_Styled(t *testing.T) {
	got := RenderMarkdown("# Deploy checklist\n\n- check login\n", false)
	if !strings.Contains(got, "Deploy checklist") || !strings.Contains(got, "check login") {
		t.Errorf("rendered output lost text: %q", got)
	}
}

func TestPlainStylesRenderUnchanged(t *testing.T) {
	s := PlainStyles()
	if got := s.Success.Render("ok"); got != "ok" {
		t.Errorf("Success.Render = %q", got)
	}
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Errorf("light background should give light theme")
	}
	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Errorf("dark background should give dark theme")
	}
}

func TestIsTerminal_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Errorf("regular file reported as terminal")
	}
}

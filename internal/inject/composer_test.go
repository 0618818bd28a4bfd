package inject

import (
	"strings"
	"testing"
)

func TestComposeReplacesCharacterData(t *testing.T) {
	out := Compose("Known characters:\n{{CHARACTER_DATA}}\nEnd.", "Alice: species(Elf)", nil)
	want := "Known characters:\nAlice: species(Elf)\nEnd."
	if out != want {
		t.Errorf("Compose = %q, want %q", out, want)
	}
}

func TestComposeReplacesEveryOccurrence(t *testing.T) {
	out := Compose("{{X}} and {{X}} and {{CHARACTER_DATA}}", "data", map[string]string{"X": "y"})
	if out != "y and y and data" {
		t.Errorf("Compose = %q", out)
	}
}

func TestComposeLeavesUnknownPlaceholders(t *testing.T) {
	out := Compose("{{CHARACTER_DATA}} {{MYSTERY}}", "data", map[string]string{"KNOWN": "v"})
	if out != "data {{MYSTERY}}" {
		t.Errorf("Compose = %q", out)
	}
}

func TestComposeEmptyData(t *testing.T) {
	if out := Compose("[{{CHARACTER_DATA}}]", "", nil); out != "[]" {
		t.Errorf("Compose = %q", out)
	}
}

func TestTemplateStoreServesEmbeddedDefaults(t *testing.T) {
	ts := NewTemplateStore()
	for _, name := range []TemplateName{TemplateInjection, TemplateCardHeader} {
		text, err := ts.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if text == "" {
			t.Errorf("template %s is empty", name)
		}
	}

	injection, err := ts.Get(TemplateInjection)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(injection, "{{"+CharacterDataVar+"}}") {
		t.Errorf("injection template is missing the %s placeholder", CharacterDataVar)
	}
}

func TestTemplateStoreOverride(t *testing.T) {
	ts := NewTemplateStore()
	ts.Set(TemplateInjection, "custom {{CHARACTER_DATA}}")

	text, err := ts.Get(TemplateInjection)
	if err != nil {
		t.Fatal(err)
	}
	if text != "custom {{CHARACTER_DATA}}" {
		t.Errorf("override not served: %q", text)
	}

	ts.ResetOverrides()
	text, err = ts.Get(TemplateInjection)
	if err != nil {
		t.Fatal(err)
	}
	if text == "custom {{CHARACTER_DATA}}" {
		t.Error("override survived ResetOverrides")
	}
}

func TestTemplateStoreUnknownTemplate(t *testing.T) {
	if _, err := NewTemplateStore().Get("nope.txt"); err == nil {
		t.Error("expected an error for an unknown template")
	}
}

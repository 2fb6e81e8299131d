package output

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"text", FormatText},
		{"", FormatText},
		{"bogus", FormatText},
	}
	for _, tt := range tests {
		if got := ParseFormat(tt.in); got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTableRenderMarkdown(t *testing.T) {
	table := NewTable("Edges", []string{"Caller", "Callee", "Confidence"}, [][]string{
		{"main", "helper", "1.00"},
		{"run", "Sub1.m", "0.90"},
	}, nil, nil)

	var buf bytes.Buffer
	if err := table.RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"## Edges",
		"| Caller | Callee | Confidence |",
		"| --- | --- | --- |",
		"| main | helper | 1.00 |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestTableRenderText(t *testing.T) {
	table := NewTable("Edges", []string{"Caller", "Callee"}, [][]string{
		{"main", "helper"},
	}, nil, nil)

	var buf bytes.Buffer
	if err := table.RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Edges") || !strings.Contains(out, "helper") {
		t.Errorf("text output incomplete:\n%s", out)
	}
}

func TestTableRenderDataFromRows(t *testing.T) {
	table := NewTable("", []string{"Caller", "Callee"}, [][]string{
		{"main", "helper"},
	}, nil, nil)

	data, ok := table.RenderData().([]map[string]string)
	if !ok || len(data) != 1 {
		t.Fatalf("RenderData = %#v", table.RenderData())
	}
	if data[0]["Caller"] != "main" || data[0]["Callee"] != "helper" {
		t.Errorf("row data = %v", data[0])
	}
}

func TestSectionNesting(t *testing.T) {
	section := &Section{
		Title:   "Reachability",
		Content: "2 functions unreachable",
		Sections: []Section{
			{Title: "Unreachable", Content: "orphan (a.ts:10)"},
		},
	}

	var buf bytes.Buffer
	if err := section.RenderMarkdown(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "## Reachability") || !strings.Contains(out, "### Unreachable") {
		t.Errorf("nested headings wrong:\n%s", out)
	}
}

func TestFormatterJSONOutput(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.json"

	f, err := NewFormatter(FormatJSON, path, true)
	if err != nil {
		t.Fatal(err)
	}
	payload := map[string]int{"edges": 3}
	if err := f.Output(payload); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]int
	data := readFile(t, path)
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, data)
	}
	if decoded["edges"] != 3 {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestReportRendersAllSections(t *testing.T) {
	report := &Report{
		Title: "Call Graph",
		Sections: []Renderable{
			NewTable("Edges", []string{"A"}, [][]string{{"x"}}, nil, nil),
			&Section{Title: "Cycles", Content: "none"},
		},
	}

	var buf bytes.Buffer
	if err := report.RenderMarkdown(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"# Call Graph", "## Edges", "## Cycles"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

package fanout

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"campaignsites/internal/ui"
)

// Summary is the machine-readable form of a Report.
type Summary struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
	Results    []Result `json:"results"`
	ElapsedMs  int64    `json:"elapsedMs"`
}

// Summary returns the report in its JSON shape.
func (r *Report) Summary() Summary {
	s := Summary{
		Successful: r.Successful(),
		Failed:     r.Failed(),
		Results:    r.Results,
		ElapsedMs:  r.Elapsed.Milliseconds(),
	}
	if s.Successful == nil {
		s.Successful = []string{}
	}
	if s.Failed == nil {
		s.Failed = []string{}
	}
	return s
}

// WriteJSON writes the summary as a single JSON object.
func (r *Report) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(r.Summary())
}

// Print writes the human-readable summary: counts, per-domain status and
// elapsed wall-clock time. Failed tenants get the tail of their output.
func (r *Report) Print(w io.Writer, styles ui.Styles) {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Build summary"))
	b.WriteString("\n\n")

	for _, res := range r.Results {
		status := styles.Success.Render("OK  ")
		if !res.Success {
			status = styles.Error.Render("FAIL")
		}
		line := fmt.Sprintf("%s  %-32s %s", status, res.Domain, styles.Muted.Render(res.Duration.Round(time.Millisecond).String()))
		if !res.Success && res.Error != "" {
			line += "  " + styles.Error.Render(res.Error)
		}
		b.WriteString(line + "\n")
	}

	ok, failed := len(r.Successful()), len(r.Failed())
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s succeeded, %s failed, %d total in %s\n",
		styles.Success.Render(fmt.Sprint(ok)),
		styles.Error.Render(fmt.Sprint(failed)),
		len(r.Results),
		r.Elapsed.Round(time.Millisecond)))

	for _, res := range r.Results {
		if res.Success || strings.TrimSpace(res.Output) == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(styles.Bold.Render(res.Domain + " output (last lines):"))
		b.WriteString("\n")
		b.WriteString(styles.Box.Render(tail(res.Output, 15)))
		b.WriteString("\n")
	}

	fmt.Fprint(w, b.String())
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/wesleyorama2/stampede/internal/metrics"
)

// htmlData is what the HTML template renders.
type htmlData struct {
	*Document
	TimelineJSON template.JS
}

// timelinePoint is a single chart data point exported to the embedded
// JSON timeline.
type timelinePoint struct {
	Timestamp string  `json:"timestamp"`
	Executor  string  `json:"executor"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
}

// WriteHTML renders the report document as a standalone HTML page and
// writes it to a file.
func WriteHTML(doc *Document, outputPath string) error {
	html, err := HTMLString(doc)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}

	return nil
}

// HTMLString renders the report document and returns the page as a string.
func HTMLString(doc *Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document cannot be nil")
	}

	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	timelineJSON, err := convertTimelineJSON(doc.Metrics)
	if err != nil {
		return "", fmt.Errorf("failed to convert timeline: %w", err)
	}

	data := htmlData{
		Document:     doc,
		TimelineJSON: template.JS(timelineJSON),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// convertTimelineJSON flattens the merged sample timeline to JSON for
// chart rendering.
func convertTimelineJSON(rep *metrics.Report) (string, error) {
	if rep == nil || len(rep.Timeline) == 0 {
		return "[]", nil
	}

	points := make([]timelinePoint, len(rep.Timeline))
	for i, s := range rep.Timeline {
		points[i] = timelinePoint{
			Timestamp: s.Timestamp.Format(time.RFC3339),
			Executor:  s.ExecutorID,
			Kind:      string(s.Kind),
			Value:     s.Value,
		}
	}

	jsonBytes, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}

	return string(jsonBytes), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatLatency":  formatLatency,
		"formatNumber":   formatNumber,
		"formatRate":     formatRate,
		"stateClass":     stateClass,
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// formatLatency formats a latency duration in a human-readable way.
func formatLatency(d time.Duration) string {
	if d == 0 {
		return "0"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		ms := float64(d.Microseconds()) / 1000.0
		if ms < 10 {
			return fmt.Sprintf("%.2fms", ms)
		}
		if ms < 100 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	}
	s := d.Seconds()
	if s < 10 {
		return fmt.Sprintf("%.2fs", s)
	}
	return fmt.Sprintf("%.1fs", s)
}

// formatNumber formats a large number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// formatRate formats a per-second rate or a percentage fraction.
func formatRate(v float64) string {
	if v == 0 {
		return "0"
	}
	if v < 10 {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// stateClass maps an executor state name to a CSS class.
func stateClass(state string) string {
	switch state {
	case "completed":
		return "pass"
	case "failed", "timed-out":
		return "fail"
	default:
		return "warn"
	}
}

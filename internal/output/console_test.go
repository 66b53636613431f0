package output_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/stampede/internal/metrics"
	"github.com/wesleyorama2/stampede/internal/output"
	"github.com/wesleyorama2/stampede/internal/report"
)

func summaryDocument(success bool) *report.Document {
	overall := &metrics.Summary{
		Requests:   200,
		Errors:     10,
		ErrorRate:  0.05,
		Throughput: 20,
		Latency: metrics.LatencyStats{
			P50:   25 * time.Millisecond,
			P95:   90 * time.Millisecond,
			P99:   200 * time.Millisecond,
			Max:   350 * time.Millisecond,
			Count: 190,
		},
	}

	doc := &report.Document{
		RunID:    "2026-03-14_10-00-00.abc123",
		Plan:     "checkout-load",
		Duration: 30 * time.Second,
		Executors: []report.ExecutorResult{
			{ID: "k6", Type: "k6", State: "completed", SampleCount: 120},
			{ID: "siege", Type: "siege", State: "failed",
				Error:       "tool exited with non-zero code",
				Diagnostics: []string{"siege STDERR:\nconnection refused"}},
		},
		Metrics: &metrics.Report{Overall: overall},
		Success: success,
	}
	return doc
}

func TestSummaryPrinter_Print(t *testing.T) {
	var buf bytes.Buffer
	p := &output.SummaryPrinter{Writer: &buf, NoColor: true}

	p.Print(summaryDocument(false))
	got := buf.String()

	for _, want := range []string{
		"checkout-load",
		"run 2026-03-14_10-00-00.abc123",
		"k6",
		"completed",
		"siege",
		"failed",
		"Duration:    30.0s",
		"Requests:    200",
		"Errors:      10 (5.0%)",
		"Throughput:  20.0 req/s",
		"p50=25ms",
		"max=350ms",
		"connection refused",
		"✗ Run failed",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q\noutput:\n%s", want, got)
		}
	}
}

func TestSummaryPrinter_PrintPassed(t *testing.T) {
	var buf bytes.Buffer
	p := &output.SummaryPrinter{Writer: &buf, NoColor: true}

	doc := summaryDocument(true)
	doc.Executors = doc.Executors[:1]
	p.Print(doc)

	if !strings.Contains(buf.String(), "✓ Run passed") {
		t.Errorf("summary missing pass line:\n%s", buf.String())
	}
}

func TestSummaryPrinter_NoColorHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	p := &output.SummaryPrinter{Writer: &buf, NoColor: true}

	p.Print(summaryDocument(false))

	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("NoColor output contains ANSI escapes")
	}
}

func TestSummaryPrinter_ColorEmitsEscapes(t *testing.T) {
	var buf bytes.Buffer
	p := &output.SummaryPrinter{Writer: &buf, NoColor: false}

	p.Print(summaryDocument(false))

	if !strings.Contains(buf.String(), "\x1b[") {
		t.Error("colored output contains no ANSI escapes")
	}
}

func TestSummaryPrinter_QuietSkipsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	p := &output.SummaryPrinter{Writer: &buf, NoColor: true, Quiet: true}

	p.Print(summaryDocument(false))

	if strings.Contains(buf.String(), "connection refused") {
		t.Error("quiet summary still shows diagnostics")
	}
}

func TestSummaryPrinter_NilDocument(t *testing.T) {
	var buf bytes.Buffer
	p := &output.SummaryPrinter{Writer: &buf, NoColor: true}

	p.Print(nil)

	if buf.Len() != 0 {
		t.Errorf("Print(nil) wrote %q", buf.String())
	}
}

func TestNewSummaryPrinter_DisablesColorForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := output.NewSummaryPrinter(&buf, false)

	if !p.NoColor {
		t.Error("color stayed enabled for a non-terminal writer")
	}
}

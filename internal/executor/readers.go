package executor

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/stampede/internal/metrics"
)

// SampleReader extracts whatever new samples a tool has produced since
// the previous read. Implementations must tolerate the source not
// existing yet (tools create report files lazily).
type SampleReader interface {
	Read() ([]metrics.Sample, error)
}

// LineParser converts one report line into samples. The second return
// value is false for lines the parser does not recognize (headers,
// summary output); those are skipped silently.
type LineParser func(line string) ([]metrics.Sample, bool)

// LineReader incrementally reads complete lines from a growing file and
// feeds them through a LineParser.
//
// Only lines terminated by a newline are consumed; a partial trailing
// line stays in the file for the next read, so a tool writing a record
// across two polls is still parsed whole.
type LineReader struct {
	path   string
	offset int64
	parse  LineParser
}

// NewLineReader creates a reader over path using the given parser.
func NewLineReader(path string, parse LineParser) *LineReader {
	return &LineReader{path: path, parse: parse}
}

// Read returns samples from lines appended since the last call.
func (r *LineReader) Read() ([]metrics.Sample, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	// Consume only up to the last newline; keep partial tails unread.
	end := strings.LastIndexByte(string(data), '\n')
	if end < 0 {
		return nil, nil
	}
	consumed := data[:end+1]
	r.offset += int64(len(consumed))

	var samples []metrics.Sample
	for _, line := range strings.Split(strings.TrimRight(string(consumed), "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if parsed, ok := r.parse(line); ok {
			samples = append(samples, parsed...)
		}
	}

	return samples, nil
}

// ParseCSVRecord parses the orchestrator's native report format:
//
//	<epoch_ms>,<latency_ms>,<ok|err>[,<bytes>]
//
// Each record yields a latency sample, plus an error sample when the
// operation failed.
func ParseCSVRecord(line string) ([]metrics.Sample, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return nil, false
	}

	epochMS, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return nil, false
	}
	latencyMS, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, false
	}

	ts := time.UnixMilli(epochMS)
	samples := []metrics.Sample{
		{Timestamp: ts, Kind: metrics.KindLatency, Value: latencyMS},
	}

	status := strings.TrimSpace(fields[2])
	if status != "ok" && status != "true" && status != "1" {
		samples = append(samples, metrics.Sample{
			Timestamp: ts, Kind: metrics.KindError, Value: 1,
		})
	}

	return samples, true
}

// ParseJSONRecord parses the orchestrator's native JSON-lines format:
//
//	{"ts": <epoch_ms>, "latency_ms": N, "ok": bool}
func ParseJSONRecord(line string) ([]metrics.Sample, bool) {
	tsField := gjson.Get(line, "ts")
	latField := gjson.Get(line, "latency_ms")
	if !tsField.Exists() || !latField.Exists() {
		return nil, false
	}

	ts := time.UnixMilli(tsField.Int())
	samples := []metrics.Sample{
		{Timestamp: ts, Kind: metrics.KindLatency, Value: latField.Float()},
	}

	okField := gjson.Get(line, "ok")
	if okField.Exists() && !okField.Bool() {
		samples = append(samples, metrics.Sample{
			Timestamp: ts, Kind: metrics.KindError, Value: 1,
		})
	}

	return samples, true
}

// ParseK6Point parses k6's JSON metric stream (--out json=...). Only
// http_req_duration and http_req_failed points are turned into samples.
func ParseK6Point(line string) ([]metrics.Sample, bool) {
	if gjson.Get(line, "type").String() != "Point" {
		return nil, false
	}

	metric := gjson.Get(line, "metric").String()
	ts, err := time.Parse(time.RFC3339Nano, gjson.Get(line, "data.time").String())
	if err != nil {
		return nil, false
	}
	value := gjson.Get(line, "data.value").Float()

	switch metric {
	case "http_req_duration":
		return []metrics.Sample{
			{Timestamp: ts, Kind: metrics.KindLatency, Value: value},
		}, true
	case "http_req_failed":
		if value > 0 {
			return []metrics.Sample{
				{Timestamp: ts, Kind: metrics.KindError, Value: value},
			}, true
		}
		return nil, true
	default:
		return nil, false
	}
}

// ParseVegetaResult parses vegeta's JSON-encoded attack results
// (vegeta encode output). Latency arrives in nanoseconds.
func ParseVegetaResult(line string) ([]metrics.Sample, bool) {
	tsField := gjson.Get(line, "timestamp")
	latField := gjson.Get(line, "latency")
	if !tsField.Exists() || !latField.Exists() {
		return nil, false
	}

	ts, err := time.Parse(time.RFC3339Nano, tsField.String())
	if err != nil {
		return nil, false
	}

	latencyMS := float64(latField.Int()) / float64(time.Millisecond)
	samples := []metrics.Sample{
		{Timestamp: ts, Kind: metrics.KindLatency, Value: latencyMS},
	}

	code := gjson.Get(line, "code").Int()
	if errMsg := gjson.Get(line, "error").String(); errMsg != "" || code >= 400 {
		samples = append(samples, metrics.Sample{
			Timestamp: ts, Kind: metrics.KindError, Value: 1,
		})
	}

	return samples, true
}

// siegeLine matches siege's verbose per-request output, e.g.
// "HTTP/1.1 200   0.12 secs:     431 bytes ==> GET  /"
var siegeLine = regexp.MustCompile(`HTTP/\d\.\d\s+(\d{3})\s+([\d.]+)\s+secs`)

// ParseSiegeLine parses one siege -v stdout line. Timestamps are not
// present in the output, so samples are stamped at read time.
func ParseSiegeLine(line string) ([]metrics.Sample, bool) {
	match := siegeLine.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}

	code, _ := strconv.Atoi(match[1])
	secs, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return nil, false
	}

	ts := time.Now()
	samples := []metrics.Sample{
		{Timestamp: ts, Kind: metrics.KindLatency, Value: secs * 1000},
	}
	if code >= 400 {
		samples = append(samples, metrics.Sample{
			Timestamp: ts, Kind: metrics.KindError, Value: 1,
		})
	}

	return samples, true
}

// ParseABRecord parses ApacheBench's gnuplot TSV output (-g flag):
//
//	starttime (ctime)	seconds	ctime	dtime	ttime	wait
//
// The file only appears when the run ends; its samples are collected by
// the final poll.
func ParseABRecord(line string) ([]metrics.Sample, bool) {
	if strings.HasPrefix(line, "starttime") {
		return nil, false // header
	}

	fields := strings.Split(line, "\t")
	if len(fields) < 6 {
		return nil, false
	}

	epoch, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return nil, false
	}
	ttimeMS, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return nil, false
	}

	return []metrics.Sample{
		{Timestamp: time.Unix(epoch, 0), Kind: metrics.KindLatency, Value: ttimeMS},
	}, true
}

// ParseBrowserStep parses one browser-harness result record:
//
//	{"test": "...", "status": "passed|failed|skipped", "duration_ms": N, "ts": "..."}
//
// Failed steps yield an error sample alongside the duration sample.
func ParseBrowserStep(line string) ([]metrics.Sample, bool) {
	status := gjson.Get(line, "status").String()
	if status == "" {
		return nil, false
	}

	ts, err := time.Parse(time.RFC3339Nano, gjson.Get(line, "ts").String())
	if err != nil {
		ts = time.Now()
	}

	samples := []metrics.Sample{{
		Timestamp: ts,
		Kind:      metrics.KindLatency,
		Value:     gjson.Get(line, "duration_ms").Float(),
	}}
	if status == "failed" {
		samples = append(samples, metrics.Sample{
			Timestamp: ts, Kind: metrics.KindError, Value: 1,
		})
	}

	return samples, true
}

// BrowserStepName extracts the step identifier from a result record, for
// diagnostics. Returns "" for unrecognized lines.
func BrowserStepName(line string) string {
	name := gjson.Get(line, "test").String()
	if name == "" {
		return ""
	}
	if suite := gjson.Get(line, "suite").String(); suite != "" {
		return fmt.Sprintf("%s/%s", suite, name)
	}
	return name
}

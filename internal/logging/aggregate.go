package logging

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Timestamp  time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"msg"`
	Serial     string         `json:"serial,omitempty"`
	Definition string         `json:"definition,omitempty"`
	LaunchID   string         `json:"launch_id,omitempty"`
	Phase      string         `json:"phase,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero-valued fields do not filter; set
// fields are combined with AND.
type LogFilter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	Level           string
	StartTime       time.Time
	EndTime         time.Time
	Serial          string
	Definition      string
	Phase           string
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// AggregateLogs reads droidbench.log and any uncompressed backups in dir.
// Lines that are not valid JSON are skipped. Entries are returned sorted by
// timestamp, oldest first.
func AggregateLogs(dir string) ([]LogEntry, error) {
	current := filepath.Join(dir, LogFileName)
	if _, err := os.Stat(current); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	paths := []string{current}
	backups, _ := filepath.Glob(current + ".[0-9]*")
	for _, b := range backups {
		if !strings.HasSuffix(b, ".gz") {
			paths = append(paths, b)
		}
	}

	var entries []LogEntry
	for _, p := range paths {
		fileEntries, err := readLogFile(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseLogs(file)
}

// ParseLogs parses JSON log lines from r, skipping blank or malformed lines.
func ParseLogs(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry

	scanner := bufio.NewScanner(r)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	if ts, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = t
		}
	}

	str := func(key string) string {
		s, _ := raw[key].(string)
		return s
	}
	entry.Level = str("level")
	entry.Message = str("msg")
	entry.Serial = str(KeySerial)
	entry.Definition = str(KeyDefinition)
	entry.LaunchID = str(KeyLaunchID)
	entry.Phase = str(KeyPhase)

	for k, v := range raw {
		switch k {
		case "time", "level", "msg", KeySerial, KeyDefinition, KeyLaunchID, KeyPhase:
		default:
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}

	var filtered []LogEntry
	for _, entry := range entries {
		if filter.matches(entry) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func (f LogFilter) matches(entry LogEntry) bool {
	if f.Level != "" {
		want, okWant := levelOrder[strings.ToUpper(f.Level)]
		got, okGot := levelOrder[entry.Level]
		if okWant && okGot && got < want {
			return false
		}
	}
	if !f.StartTime.IsZero() && entry.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && entry.Timestamp.After(f.EndTime) {
		return false
	}
	if f.Serial != "" && entry.Serial != f.Serial {
		return false
	}
	if f.Definition != "" && entry.Definition != f.Definition {
		return false
	}
	if f.Phase != "" && entry.Phase != f.Phase {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(entry.Message, f.MessageContains) {
		return false
	}
	return true
}

// ExportFormats lists the formats accepted by ExportLogEntries.
var ExportFormats = []string{"text", "json", "csv"}

// ExportLogEntries writes entries to w as "text", "json" or "csv".
func ExportLogEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "text", "":
		return exportText(w, entries)
	case "csv":
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: %s)", format, strings.Join(ExportFormats, ", "))
	}
}

func exportText(w io.Writer, entries []LogEntry) error {
	for _, entry := range entries {
		parts := []string{
			fmt.Sprintf("[%s]", entry.Timestamp.Format("2006-01-02 15:04:05.000")),
			entry.Level,
			"-",
			entry.Message,
		}

		var ctx []string
		if entry.Serial != "" {
			ctx = append(ctx, "serial="+entry.Serial)
		}
		if entry.Definition != "" {
			ctx = append(ctx, "definition="+entry.Definition)
		}
		if entry.Phase != "" {
			ctx = append(ctx, "phase="+entry.Phase)
		}
		if len(ctx) > 0 {
			parts = append(parts, "("+strings.Join(ctx, ", ")+")")
		}
		if len(entry.Attrs) > 0 {
			attrs, _ := json.Marshal(entry.Attrs)
			parts = append(parts, string(attrs))
		}

		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

func exportCSV(w io.Writer, entries []LogEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"timestamp", "level", "message", "serial", "definition", "launch_id", "phase", "attrs"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, entry := range entries {
		attrs := ""
		if len(entry.Attrs) > 0 {
			if b, err := json.Marshal(entry.Attrs); err == nil {
				attrs = string(b)
			}
		}
		record := []string{
			entry.Timestamp.Format(time.RFC3339Nano),
			entry.Level,
			entry.Message,
			entry.Serial,
			entry.Definition,
			entry.LaunchID,
			entry.Phase,
			attrs,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

package models

import "time"

// SourceFile is C1's walker output element.
type SourceFile struct {
	AbsolutePath string `json:"absolute_path"`
	RelativePath string `json:"relative_path"`
	Language     string `json:"language"`
}

// DetectorTiming records one detector's wall time on one file, surfaced
// through ScanResult.DetectorStats.
type DetectorTiming struct {
	DetectorID string        `json:"detector_id"`
	File       string        `json:"file"`
	Duration   time.Duration `json:"duration_ns"`
}

// PerFileStat summarizes one file's contribution to a scan.
type PerFileStat struct {
	File            string `json:"file"`
	Language        string `json:"language"`
	DetectorsRun    int    `json:"detectors_run"`
	PatternsMatched int    `json:"patterns_matched"`
	Violations      int    `json:"violations"`
}

// DetectorStat aggregates timing/error counts per detector across a scan.
type DetectorStat struct {
	DetectorID   string        `json:"detector_id"`
	FilesRun     int           `json:"files_run"`
	TotalTime    time.Duration `json:"total_time_ns"`
	Errors       int           `json:"errors"`
}

// WorkerStat reports one worker's share of a scan's partition.
type WorkerStat struct {
	WorkerIndex int `json:"worker_index"`
	FilesHandled int `json:"files_handled"`
	Retried     int `json:"retried"`
}

// ScanError is a non-fatal, per-file failure captured during a scan.
type ScanError struct {
	File      string `json:"file"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// ScanResult is C4's scan() return shape, per §4.4.
type ScanResult struct {
	Patterns      []Pattern        `json:"patterns"`
	Violations    []Violation      `json:"violations"`
	PerFileStats  []PerFileStat    `json:"per_file_stats"`
	DetectorStats []DetectorStat   `json:"detector_stats"`
	WorkerStats   []WorkerStat     `json:"worker_stats"`
	Errors        []ScanError      `json:"errors"`
	TimedOut      bool             `json:"timed_out"`
}

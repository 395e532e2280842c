package batchstore

import (
	"sort"
	"strings"
	"time"
)

// Filesystem layout constants. External tooling depends on these names.
const (
	MetadataFilename = "metadata.json"
	LockFilename     = "LOCKED"
	TakesDirName     = "takes"
	RankedDirName    = "ranked"
)

// Rank bounds for ranked takes.
const (
	MinRank = 1
	MaxRank = 5
)

// Take records one synthesized (or converted) audio attempt for a script line.
type Take struct {
	File               string         `json:"file"`
	Line               string         `json:"line"`
	ScriptText         string         `json:"script_text"`
	TakeNumber         int            `json:"take_number"`
	GenerationSettings map[string]any `json:"generation_settings"`
	Rank               *int           `json:"rank,omitempty"`
	RankedAt           *string        `json:"ranked_at,omitempty"`
}

// Document is the durable representation of one batch. It is rewritten
// wholesale on every mutation; fields are never patched in place on disk.
type Document struct {
	BatchID          string         `json:"batch_id"`
	SkinName         string         `json:"skin_name"`
	VoiceName        string         `json:"voice_name"`
	GeneratedAtUTC   *string        `json:"generated_at_utc"`
	GenerationParams map[string]any `json:"generation_params"`
	RankedAtUTC      *string        `json:"ranked_at_utc"`
	Takes            []Take         `json:"takes"`
}

// NewDocument constructs a metadata document for a freshly generated batch.
func NewDocument(batchID, skin, voice string, params map[string]any, generatedAt time.Time) *Document {
	ts := generatedAt.UTC().Format(time.RFC3339)
	return &Document{
		BatchID:          batchID,
		SkinName:         skin,
		VoiceName:        voice,
		GeneratedAtUTC:   &ts,
		GenerationParams: params,
		Takes:            []Take{},
	}
}

// Lines returns the distinct line keys across all takes, sorted.
func (d *Document) Lines() []string {
	seen := map[string]struct{}{}
	for _, take := range d.Takes {
		seen[take.Line] = struct{}{}
	}
	lines := make([]string, 0, len(seen))
	for line := range seen {
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

// TakesForLine returns the takes recorded for one line, in document order.
func (d *Document) TakesForLine(line string) []Take {
	var takes []Take
	for _, take := range d.Takes {
		if take.Line == line {
			takes = append(takes, take)
		}
	}
	return takes
}

// MaxTakeNumber returns the highest take number recorded for a line, or 0
// when the line has no takes.
func (d *Document) MaxTakeNumber(line string) int {
	max := 0
	for _, take := range d.Takes {
		if take.Line == line && take.TakeNumber > max {
			max = take.TakeNumber
		}
	}
	return max
}

// NextTakeNumber returns the next available take number for a line. Numbers
// are never reused within a batch, even after takes are archived.
func (d *Document) NextTakeNumber(line string) int {
	return d.MaxTakeNumber(line) + 1
}

// RemoveTakesForLine drops every take for the given line from the document
// and returns the removed takes.
func (d *Document) RemoveTakesForLine(line string) []Take {
	var removed []Take
	kept := d.Takes[:0]
	for _, take := range d.Takes {
		if take.Line == line {
			removed = append(removed, take)
			continue
		}
		kept = append(kept, take)
	}
	d.Takes = kept
	return removed
}

// validShape reports whether the document satisfies the required shape:
// a non-empty batch_id and a takes sequence.
func (d *Document) validShape() (string, bool) {
	if d == nil {
		return "document is nil", false
	}
	if strings.TrimSpace(d.BatchID) == "" {
		return "batch_id missing", false
	}
	if d.Takes == nil {
		return "takes sequence missing", false
	}
	return "", true
}

package hyper

import (
	"regexp"
	"strconv"
	"strings"
)

// All pattern matching against tool output lives in this file. Every
// extraction is optional: a miss degrades to a zero value so one malformed
// field never voids an otherwise valid record.

var (
	cpuPattern      = regexp.MustCompile(`CPU\(s\):\s+(\d+)`)
	maxMemPattern   = regexp.MustCompile(`Max memory:\s+(\d+)\s+KiB`)
	statePattern    = regexp.MustCompile(`State:\s+(.+)`)
	capacityPattern = regexp.MustCompile(`Capacity:\s+([\d.]+)\s+([A-Za-z]+)`)
	portPattern     = regexp.MustCompile(`:(\d+)$`)
)

// DomainDetail is the typed result of a domain detail block.
type DomainDetail struct {
	CPUCores   int
	MemoryMB   int
	PowerState PowerState
}

// ParseDomainDetail extracts CPU count, max memory (KiB scaled to MB) and a
// classified power state from a dominfo block. Missing fields default to
// zero and "stopped".
func ParseDomainDetail(text string) DomainDetail {
	d := DomainDetail{PowerState: PowerStopped}
	if m := cpuPattern.FindStringSubmatch(text); m != nil {
		d.CPUCores, _ = strconv.Atoi(m[1])
	}
	if m := maxMemPattern.FindStringSubmatch(text); m != nil {
		kib, _ := strconv.Atoi(m[1])
		d.MemoryMB = kib / 1024
	}
	if m := statePattern.FindStringSubmatch(text); m != nil {
		state := strings.ToLower(m[1])
		switch {
		case strings.Contains(state, "running"):
			d.PowerState = PowerRunning
		case strings.Contains(state, "paused"):
			d.PowerState = PowerPaused
		}
	}
	return d
}

// ParseNameList splits a --name listing into trimmed, non-empty names.
func ParseNameList(text string) []string {
	names := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ParseTableRows splits a tabular listing into per-row fields, skipping the
// two header lines the tool prints.
func ParseTableRows(text string) [][]string {
	lines := strings.Split(text, "\n")
	if len(lines) <= 2 {
		return nil
	}
	rows := make([][]string, 0, len(lines)-2)
	for _, line := range lines[2:] {
		if fields := strings.Fields(line); len(fields) > 0 {
			rows = append(rows, fields)
		}
	}
	return rows
}

// ParseInterfaceNames extracts the source network column of a domiflist
// table.
func ParseInterfaceNames(text string) []string {
	names := make([]string, 0)
	for _, row := range ParseTableRows(text) {
		if len(row) >= 3 {
			names = append(names, row[2])
		}
	}
	return names
}

// ParseCapacityGB extracts a volume capacity from a vol-info block, scaled
// to GB. Unknown units and missing fields yield 0.
func ParseCapacityGB(text string) float64 {
	m := capacityPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	unit := strings.ToLower(m[2])
	switch {
	case strings.HasPrefix(unit, "g"):
		return size
	case strings.HasPrefix(unit, "m"):
		return size / 1024.0
	case strings.HasPrefix(unit, "k"):
		return size / (1024.0 * 1024.0)
	}
	return 0
}

// ParseDisplayPort extracts the trailing port of a display URI, 0 when
// absent.
func ParseDisplayPort(displayURI string) int {
	m := portPattern.FindStringSubmatch(strings.TrimSpace(displayURI))
	if m == nil {
		return 0
	}
	port, _ := strconv.Atoi(m[1])
	return port
}

// KindOfVolume classifies a volume by file extension.
func KindOfVolume(name string) VolumeKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".iso"):
		return VolumeISO
	case strings.HasSuffix(lower, ".qcow2"):
		return VolumeQCOW2
	}
	return VolumeDisk
}

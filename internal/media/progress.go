package media

import (
	"regexp"
	"strconv"
	"strings"
)

// Phase is the stage createinstallmedia is in, inferred from its output.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseErasing  Phase = "erasing"
	PhaseCopying  Phase = "copying"
	PhaseBootable Phase = "making bootable"
	PhaseDone     Phase = "done"
)

// Progress is one observed step of a running write.
type Progress struct {
	// Phase the write is in. When a line names no phase, the previous
	// one is carried forward.
	Phase Phase

	// Percent parsed from the line, or -1 when it carried none.
	Percent float64

	// Line is the raw output line.
	Line string
}

// ProgressFunc receives progress events in output order.
type ProgressFunc func(Progress)

// Ordered phase rules; the first matching keyword wins. createinstallmedia
// output has kept these phrases stable from El Capitan through Sequoia.
var phaseRules = []struct {
	keyword string
	phase   Phase
}{
	{"erasing disk", PhaseErasing},
	{"erasing", PhaseErasing},
	{"copying installer files", PhaseCopying},
	{"copying to disk", PhaseCopying},
	{"making disk bootable", PhaseBootable},
	{"copying boot files", PhaseBootable},
	{"install media now available", PhaseDone},
	{"done.", PhaseDone},
}

var (
	percentPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	availablePattern = regexp.MustCompile(`now available at "([^"]+)"`)
)

// parseLine classifies one output line. An empty phase means the line said
// nothing new about the stage.
func parseLine(line string) Progress {
	p := Progress{Percent: -1, Line: line}

	lower := strings.ToLower(line)
	for _, rule := range phaseRules {
		if strings.Contains(lower, rule.keyword) {
			p.Phase = rule.phase
			break
		}
	}

	// Lines like "Erasing disk: 0%... 10%... 20%" report several marks;
	// the last one is current.
	if marks := percentPattern.FindAllStringSubmatch(line, -1); len(marks) > 0 {
		if v, err := strconv.ParseFloat(marks[len(marks)-1][1], 64); err == nil {
			p.Percent = v
		}
	}
	return p
}

// progressTracker carries the phase across lines and captures the final
// mount point announced on success.
type progressTracker struct {
	fn       ProgressFunc
	phase    Phase
	donePath string
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn, phase: PhaseStarting}
}

func (t *progressTracker) observe(line string) {
	if m := availablePattern.FindStringSubmatch(line); m != nil {
		t.donePath = m[1]
	}

	p := parseLine(line)
	if p.Phase == "" {
		p.Phase = t.phase
	} else {
		t.phase = p.Phase
	}
	if t.fn != nil {
		t.fn(p)
	}
}

// finalPath is the volume path the tool announced, or "".
func (t *progressTracker) finalPath() string {
	return t.donePath
}

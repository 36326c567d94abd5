package checkpoint

import (
	"strconv"
	"strings"
)

type lineKind int

const (
	lineSkip lineKind = iota
	lineStep
	lineDone
)

// doneMarker is the manifest line that ends the sequence.
const doneMarker = "done"

// parseLine extracts the checkpoint step from one manifest line.
func parseLine(line string) (int64, lineKind) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0, lineSkip
	}
	if line == doneMarker {
		return 0, lineDone
	}
	// The "latest" pointer repeats the newest entry of the list below it.
	if strings.HasPrefix(line, "model_checkpoint_path:") {
		return 0, lineSkip
	}
	if n, err := strconv.ParseInt(line, 10, 64); err == nil {
		return n, lineStep
	}

	line = strings.TrimRight(line, `"'`)
	i := strings.LastIndexByte(line, '-')
	if i < 0 || i == len(line)-1 {
		return 0, lineSkip
	}
	digits := line[i+1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, lineSkip
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, lineSkip
	}
	return n, lineStep
}

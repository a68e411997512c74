// Package power reports the remaining battery level.
package power

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Fixed is a constant level, for mains-powered hosts and tests.
type Fixed int

// Level returns the fixed level clamped to [0,100].
func (f Fixed) Level() int {
	return clamp(int(f))
}

// Sysfs reads battery capacity from a Linux power_supply class directory.
type Sysfs struct {
	Dir string
}

// DefaultSysfsDir is the kernel's power_supply class directory.
const DefaultSysfsDir = "/sys/class/power_supply"

// NewSysfs returns a reader over dir.
func NewSysfs(dir string) *Sysfs {
	if dir == "" {
		dir = DefaultSysfsDir
	}
	return &Sysfs{Dir: dir}
}

// Level returns the capacity of the first battery that can be read.
// Without a readable battery the host is assumed to run on mains, 100.
func (s *Sysfs) Level() int {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "BAT*", "capacity"))
	if err != nil || len(matches) == 0 {
		return 100
	}
	sort.Strings(matches)

	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		return clamp(v)
	}
	return 100
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

package marker

import (
	"errors"
	"fmt"
)

// ErrInvalidLine is returned for a marker line outside the file.
var ErrInvalidLine = errors.New("invalid marker line")

// CheckLine validates a 1-based line against a file of lineCount lines.
func CheckLine(line, lineCount int) error {
	if line < 1 || line > lineCount {
		return fmt.Errorf("%w: %d (file has %d lines)", ErrInvalidLine, line, lineCount)
	}
	return nil
}

// State is the gutter view of a Set: at most one entry line plus the sets
// of break and exit lines. Entry is 0 when no entry is placed.
type State struct {
	Entry  int   `json:"entry,omitempty"`
	Breaks []int `json:"breaks,omitempty"`
	Exits  []int `json:"exits,omitempty"`
}

// State projects the set onto the gutter view. When several entry lines are
// present the lowest one is reported as the entry and the rest are dropped.
func (s Set) State() State {
	var st State
	for _, line := range s.Lines() {
		switch s[line] {
		case Entry:
			if st.Entry == 0 {
				st.Entry = line
			}
		case Break:
			st.Breaks = append(st.Breaks, line)
		case Exit:
			st.Exits = append(st.Exits, line)
		}
	}
	return st
}

// Set converts the gutter view back into a marker set.
func (st State) Set() Set {
	set := make(Set, len(st.Breaks)+len(st.Exits)+1)
	for _, line := range st.Breaks {
		set[line] = Break
	}
	for _, line := range st.Exits {
		set[line] = Exit
	}
	if st.Entry > 0 {
		set[st.Entry] = Entry
	}
	return set
}

// Cycle advances the marker on line through none → entry → break → exit →
// none. A line without a marker becomes a break instead of an entry when
// another line already holds the entry.
func Cycle(s Set, line int) Set {
	next := make(Set, len(s)+1)
	for l, k := range s {
		next[l] = k
	}

	current, ok := s[line]
	switch {
	case !ok:
		if next.Count(Entry) > 0 {
			next[line] = Break
		} else {
			next[line] = Entry
		}
	case current == Entry:
		next[line] = Break
	case current == Break:
		next[line] = Exit
	default:
		delete(next, line)
	}
	return next
}

// Apply sets line to kind, enforcing a single entry per file.
func Apply(s Set, line int, kind Kind) Set {
	next := make(Set, len(s)+1)
	for l, k := range s {
		if kind == Entry && k == Entry {
			continue
		}
		next[l] = k
	}
	next[line] = kind
	return next
}

// Clear removes the marker on line, if any.
func Clear(s Set, line int) Set {
	next := make(Set, len(s))
	for l, k := range s {
		if l != line {
			next[l] = k
		}
	}
	return next
}

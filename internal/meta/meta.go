// Package meta derives per-glycan meta-properties, the vocabulary that
// trait formulas select on. The vocabulary is closed: every property a
// formula may reference is registered here with its value kind and the
// glycan representation it is derived from.
package meta

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which glycan representation a run derives from.
type Mode int

const (
	StructureMode Mode = iota
	CompositionMode
)

func (m Mode) String() string {
	switch m {
	case StructureMode:
		return "structure"
	case CompositionMode:
		return "composition"
	}
	return "unknown"
}

// ParseMode accepts the long and short spellings used on the command line.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "structure", "struc", "s":
		return StructureMode, nil
	case "composition", "comp", "c":
		return CompositionMode, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// ValueKind tags the value type of a meta-property column.
type ValueKind int

const (
	BoolKind ValueKind = iota
	IntKind
	StringKind
)

// Property describes one entry of the vocabulary.
type Property struct {
	Name       string
	Kind       ValueKind
	SiaLinkage bool // derived only in linkage-aware runs
}

// ErrUnknownProperty marks references to names outside the vocabulary.
var ErrUnknownProperty = errors.New("unknown meta-property")

// SiaLinkageProperty reports whether the name belongs to the linkage-only
// part of either vocabulary.
func SiaLinkageProperty(name string) bool {
	for _, p := range structProps {
		if p.Name == name {
			return p.SiaLinkage
		}
	}
	for _, p := range compProps {
		if p.Name == name {
			return p.SiaLinkage
		}
	}
	return false
}

// Properties returns the vocabulary for a mode in registration order,
// without the linkage-only entries unless siaLinkage is set.
func Properties(mode Mode, siaLinkage bool) []Property {
	var out []Property
	switch mode {
	case StructureMode:
		for _, p := range structProps {
			if p.SiaLinkage && !siaLinkage {
				continue
			}
			out = append(out, p.Property)
		}
	case CompositionMode:
		for _, p := range compProps {
			if p.SiaLinkage && !siaLinkage {
				continue
			}
			out = append(out, p.Property)
		}
	}
	return out
}

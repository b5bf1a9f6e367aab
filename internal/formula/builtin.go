package formula

import (
	_ "embed"
	"fmt"
	"strings"

	"glytrait/internal/meta"
)

//go:embed builtin/struc_formulas.txt
var strucFormulasText string

//go:embed builtin/comp_formulas.txt
var compFormulasText string

//go:embed builtin/template.txt
var templateText string

// Builtin parses the embedded formula file for a mode. The embedded files
// ship with the binary, so a parse failure is a build defect.
func Builtin(mode meta.Mode) []*Formula {
	fs, err := ParseFile(strings.NewReader(BuiltinText(mode)))
	if err != nil {
		panic(fmt.Sprintf("formula: embedded %s formulas broken: %v", mode, err))
	}
	return fs
}

// BuiltinText returns the raw embedded formula file for a mode, used when
// exporting reference copies.
func BuiltinText(mode meta.Mode) string {
	if mode == meta.CompositionMode {
		return compFormulasText
	}
	return strucFormulasText
}

// Template returns the commented starter file for custom formulas.
func Template() string { return templateText }

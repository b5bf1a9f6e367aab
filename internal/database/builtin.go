package database

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"glytrait/internal/loader"
)

//go:embed builtin/*.csv
var builtinFS embed.FS

// BuiltinNames lists the shipped structure libraries.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		panic(fmt.Sprintf("database: broken embedded libraries: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Builtin returns a shipped structure library by name.
func Builtin(name string) ([]loader.StructureRow, error) {
	data, err := builtinFS.ReadFile("builtin/" + strings.ToLower(name) + ".csv")
	if err != nil {
		return nil, fmt.Errorf("no built-in library %q, available: %s", name, strings.Join(BuiltinNames(), ", "))
	}
	rows, err := loader.ReadStructureCSV(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("database: broken embedded library %s: %v", name, err))
	}
	return rows, nil
}

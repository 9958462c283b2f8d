package discovery

import (
	"path/filepath"
	"strings"
)

// typeByExt maps file extensions to detected types.
var typeByExt = map[string]FileType{
	".go":    TypeGo,
	".py":    TypePython,
	".pyi":   TypePython,
	".js":    TypeJavaScript,
	".jsx":   TypeJavaScript,
	".mjs":   TypeJavaScript,
	".ts":    TypeTypeScript,
	".tsx":   TypeTypeScript,
	".rs":    TypeRust,
	".c":     TypeC,
	".h":     TypeC,
	".cc":    TypeCPP,
	".cpp":   TypeCPP,
	".cxx":   TypeCPP,
	".hpp":   TypeCPP,
	".java":  TypeJava,
	".rb":    TypeRuby,
	".sh":    TypeShell,
	".bash":  TypeShell,
	".zsh":   TypeShell,
	".sql":   TypeSQL,
	".md":    TypeMarkdown,
	".json":  TypeJSON,
	".yaml":  TypeYAML,
	".yml":   TypeYAML,
	".toml":  TypeTOML,
	".html":  TypeHTML,
	".htm":   TypeHTML,
	".css":   TypeCSS,
	".txt":   TypeText,
	".text":  TypeText,
	".cfg":   TypeText,
	".ini":   TypeText,
	".lock":  TypeText,
	".proto": TypeText,
}

// sourceTypes are the types treated as source code.
var sourceTypes = map[FileType]bool{
	TypeGo:         true,
	TypePython:     true,
	TypeJavaScript: true,
	TypeTypeScript: true,
	TypeRust:       true,
	TypeC:          true,
	TypeCPP:        true,
	TypeJava:       true,
	TypeRuby:       true,
	TypeShell:      true,
	TypeSQL:        true,
}

// wellKnownNames classifies extension-less files by basename.
var wellKnownNames = map[string]FileType{
	"makefile":   TypeShell,
	"dockerfile": TypeShell,
	"rakefile":   TypeRuby,
	"gemfile":    TypeRuby,
}

// Classify detects the type of a file from its path.
func Classify(path string) (FileType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := typeByExt[ext]; ok {
		return t, sourceTypes[t]
	}
	if t, ok := wellKnownNames[strings.ToLower(filepath.Base(path))]; ok {
		return t, sourceTypes[t]
	}
	return TypeUnknown, false
}

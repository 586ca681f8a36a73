package broken

import (
	"path/filepath"
	"strings"
)

// DenyAttrs are attribute fragments never marked automatically. Their
// failures usually come from a shared package set rather than the package.
var DenyAttrs = []string{
	"python27Packages",
	"python39Packages",
	"python310Packages",
	"linuxPackages_",
	"rubyPackages_",
}

// DenyFiles are file names whose meta block is shared by a whole package
// set; marking them would mark every package in the set.
var DenyFiles = []string{
	"node-packages.nix",
	"generic-builder.nix",
}

// SkipError reports that an attribute was deliberately left unmarked.
type SkipError struct {
	Attr   string
	Reason string
}

func (e *SkipError) Error() string { return e.Attr + ": " + e.Reason }

// CheckAttr returns a SkipError when attr contains a denied fragment.
func CheckAttr(attr string) error {
	for _, bad := range DenyAttrs {
		if strings.Contains(attr, bad) {
			return &SkipError{Attr: attr, Reason: "attr contains " + bad}
		}
	}
	return nil
}

// CheckFile returns a SkipError when the base name of path matches a denied file.
func CheckFile(attr, path string) error {
	base := filepath.Base(path)
	for _, bad := range DenyFiles {
		if base == bad {
			return &SkipError{Attr: attr, Reason: "file " + bad + " is shared"}
		}
	}
	return nil
}

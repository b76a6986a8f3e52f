package source

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoModule is returned when no go.mod encloses a loaded directory.
var ErrNoModule = errors.New("source: no go.mod found")

// DuplicatePackageError is returned when an import path is loaded twice.
type DuplicatePackageError struct {
	Path string
}

func (e *DuplicatePackageError) Error() string {
	return "source: package " + strconv.Quote(e.Path) + " loaded twice"
}

// MixedPackagesError is returned when one directory holds several package
// clauses.
type MixedPackagesError struct {
	Dir   string
	Names []string
}

func (e *MixedPackagesError) Error() string {
	return "source: directory " + strconv.Quote(e.Dir) + " mixes packages " + strings.Join(e.Names, ", ")
}

// OutsideModuleError is returned when a directory is not below the root of
// the module that was found for it.
type OutsideModuleError struct {
	Dir     string
	ModRoot string
}

func (e *OutsideModuleError) Error() string {
	return "source: directory " + strconv.Quote(e.Dir) + " is outside module root " + strconv.Quote(e.ModRoot)
}

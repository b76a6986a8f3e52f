package gen

import (
	"go/token"
	"path/filepath"
	"strconv"
)

// ArtifactKind tells dispatch and registration artifacts apart.
type ArtifactKind int

const (
	ArtifactDispatch ArtifactKind = iota
	ArtifactRegistration
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactDispatch:
		return "dispatch"
	case ArtifactRegistration:
		return "registration"
	default:
		return "artifact(" + strconv.Itoa(int(k)) + ")"
	}
}

// Artifact is one generated source file.
type Artifact struct {
	Key        string
	Kind       ArtifactKind
	Dispatcher Dispatcher
	// File is the base name of the output file inside Dispatcher.Dir.
	File   string
	Source []byte
	Pos    token.Position

	ref bindingRef
}

// bindingRef locates the binding a dispatch artifact was rendered from.
type bindingRef struct {
	group int
	index int
}

// Path is the output path of the artifact.
func (a Artifact) Path() string { return filepath.Join(a.Dispatcher.Dir, a.File) }

// Severity grades a Diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a problem found while assembling artifacts.
type Diagnostic struct {
	Severity Severity
	Key      string
	Message  string
	Pos      token.Position
}

func (d Diagnostic) String() string {
	pos := d.Pos.String()
	if !d.Pos.IsValid() {
		pos = "-"
	}
	return pos + ": " + d.Severity.String() + ": " + d.Message
}

// Stats counts what a run did.
type Stats struct {
	Sites                 int
	Resolved              int
	Dropped               map[DropReason]int
	DispatchArtifacts     int
	RegistrationArtifacts int
	Conflicts             int
}

// DroppedTotal sums Dropped.
func (s Stats) DroppedTotal() int {
	n := 0
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// Result is the outcome of one run.
type Result struct {
	Artifacts   []Artifact
	Diagnostics []Diagnostic
	Stats       Stats
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

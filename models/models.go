package models

// FailureKind classifies why a single target could not be archived.
type FailureKind string

const (
	FailureMissingFilepath FailureKind = "missing filepath"
	FailureUnsafeFilepath  FailureKind = "unsafe filepath"
	FailureMissingURL      FailureKind = "missing URL in config entry"
	FailureFetch           FailureKind = "fetch failed"
	FailureInvalidXML      FailureKind = "invalid XML"
	FailureTransform       FailureKind = "RSS transformation failed"
	FailurePartition       FailureKind = "partition fault"
)

// Target is one concrete unit of work after template expansion.
type Target struct {
	Filepath string
	URL      string
	Lang     string
}

// Failure records one target that could not be archived during this run.
// Failures only live for the duration of a run; they are batched into a
// single notification and then discarded.
type Failure struct {
	URL      string
	Filepath string
	Lang     string
	Kind     FailureKind
	Detail   string
}

// Message renders the failure as one line of the notification report.
func (f Failure) Message() string {
	subject := f.URL
	if subject == "" {
		subject = f.Lang
	}
	path := f.Filepath
	if path == "" {
		path = "unknown"
	}
	line := "- `" + subject + "` for `" + path + "`: " + string(f.Kind)
	if f.Detail != "" {
		line += " (" + f.Detail + ")"
	}
	return line
}

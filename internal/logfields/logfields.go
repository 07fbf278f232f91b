package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID   = "job_id"
	KeyProject = "project"
	KeyBuild   = "build"
	KeyBranch  = "branch"
	KeySource  = "source"
	KeyRef     = "ref"
	KeyCommand = "command"
	KeyPath    = "path"
	KeyURL     = "url"
	KeyError   = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr     { return slog.String(KeyJobID, id) }
func Project(name string) slog.Attr { return slog.String(KeyProject, name) }
func Build(name string) slog.Attr   { return slog.String(KeyBuild, name) }
func Branch(b string) slog.Attr     { return slog.String(KeyBranch, b) }
func Source(s string) slog.Attr     { return slog.String(KeySource, s) }
func Ref(r string) slog.Attr        { return slog.String(KeyRef, r) }
func Command(c string) slog.Attr    { return slog.String(KeyCommand, c) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr        { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

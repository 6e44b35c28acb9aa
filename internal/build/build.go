// Package build holds build-time metadata stamped in by the release
// pipeline via -ldflags.
package build

var (
	// ProjectName is used for metric namespaces and the service name
	// reported to the tracing backend.
	ProjectName = "aclscan"

	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = ""
)

// Package version holds build metadata. Both values are set at build time:
//
//	-ldflags '-X github.com/invisible-tech/xdr-responder/internal/version.Version=1.2.3
//	          -X github.com/invisible-tech/xdr-responder/internal/version.Commit=abc123'
package version

// Version is the release version; local builds report 0.1.0.
var Version = "0.1.0"

// Commit is the source revision, empty for local builds.
var Commit = ""

// UserAgent identifies this build in outbound API requests.
func UserAgent() string {
	if Commit == "" {
		return "xdr-responder/" + Version
	}
	return "xdr-responder/" + Version + " (" + Commit + ")"
}

// Package version holds build identity for the host CLIs (cmd/imagebuilder,
// cmd/otapush), injected via ldflags at link time.
package version

import "fmt"

// Build information (injected via ldflags - must NOT have default values)
var (
	Version   string
	GitSHA    string
	BuildDate string
)

// ProtocolMarker identifies the on-wire image format / OTA handshake
// revision this binary was built against. Bump it whenever imagebuilder's
// output format or otapush's chunk protocol changes in a way that makes
// binaries built against different markers incompatible.
const ProtocolMarker = "iap-proto-1"

// String formats the build identity the way a -version flag prints it:
// "<version> (<gitsha>, built <builddate>, proto <marker>)", falling back
// to "dev" for the version and "unknown" for the SHA and date in an
// unlinked (go run / go test) binary.
func String() string {
	v, sha, date := Version, GitSHA, BuildDate
	if v == "" {
		v = "dev"
	}
	if sha == "" {
		sha = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (%s, built %s, proto %s)", v, sha, date, ProtocolMarker)
}

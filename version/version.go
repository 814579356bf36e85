// Package version exposes the library version and the default User-Agent string.
package version

import (
	"fmt"
	"runtime"
)

// ClientName identifies this library in the User-Agent header.
const ClientName = "TD-Client-Go"

// Version is the library version. Overridable at build time with
// -ldflags "-X github.com/gaborage/go-tdclient/version.Version=...".
var Version = "v0.4.0"

// UserAgent returns "<ClientName>: <version> (<go version>; <os>; <arch>)".
func UserAgent() string {
	return fmt.Sprintf("%s: %s (%s; %s; %s)", ClientName, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

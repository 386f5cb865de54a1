// Package version reports the build of the running binary.
//
// Values come from -ldflags when set and from the module build info
// otherwise:
//
//	go build -ldflags "-X github.com/kbukum/flowkit/version.Version=1.2.0" ./cmd/flowkit
package version

// Package version reports the build of the running binary. Version and
// Commit are set with -ldflags; otherwise they come from the module build
// info.
//
//	go build -ldflags "-X github.com/kbukum/oidcrp/version.Version=v1.2.0" ./cmd/oidcrp
package version

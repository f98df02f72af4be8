// Package version holds build metadata set through -ldflags.
package version

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/papercomputeco/foodlens/pkg/version.Version=v1.2.3"
var Version = "dev"

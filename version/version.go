package version

// Version is the binary version, overridden at build time:
//
//	go build -ldflags "-X github.com/edgarlab/secrnn/version.Version=0.2.1"
var Version = "0.0.0"

package version

// Version is the current version of the babeltalk CLI.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/Rishabh-hub-code/babel-stream-talk/internal/version.Version=v1.0.0'"
var Version = "dev"

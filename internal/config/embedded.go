package config

// Build metadata injected at build time via ldflags.
//
// Build with:
//   go build -ldflags "-X 'github.com/deleterr/deleterr/internal/config.Version=v1.2.3' \
//                      -X 'github.com/deleterr/deleterr/internal/config.Commit=abc123'"
var (
	Version = "dev"
	Commit  string
)

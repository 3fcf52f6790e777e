package version

// Version is the liteshare build version, set at release time with:
//
//	go build -ldflags="-X 'github.com/BioHazard786/liteshare/internal/version.Version=v1.0.0'"
var Version = "dev"

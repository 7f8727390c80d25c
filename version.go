package parley

// Version is the library version, overridden at build time via
// -ldflags "-X github.com/aretw0/parley.Version=...".
var Version = "dev"

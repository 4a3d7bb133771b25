package version

// AppVersion is overridden at build time with
// -ldflags "-X tablature/version.AppVersion=...".
var AppVersion = "0.1.0-dev"

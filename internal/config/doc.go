// Package config defines the application's typed configuration and its
// loader. Configuration is parsed once at startup (file plus REQUIEM_
// environment variables), validated, and passed by reference to every
// component that needs it; there is no lazy re-parsing.
package config

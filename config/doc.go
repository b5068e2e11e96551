// Package config loads service configuration from a YAML file, an optional
// .env file and environment variables, in that order of precedence (last wins).
//
// Target structs use mapstructure tags. Every leaf field is bound to an
// environment variable named PREFIX_SECTION_FIELD, so nested values can be
// overridden without appearing in the file.
package config

// Package validation checks configuration structs with go-playground/validator.
// Field names in messages are taken from mapstructure tags so they match the
// keys an operator wrote in the config file.
package validation

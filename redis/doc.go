// Package redis wraps go-redis with the logging, config and component
// conventions of this module, and offers a JSON TypedStore with an atomic
// Take for single-use records.
package redis

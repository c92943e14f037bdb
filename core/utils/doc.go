// Package utils provides common utility functions shared across the
// application, mainly loose type conversions for externally sourced
// payloads whose field types are not guaranteed.
package utils

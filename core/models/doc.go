// Package models defines the persistence layer rows and their conversions
// to and from the domain types in core/catalog.
//
// Rows carry GORM tags and stay inside the storage boundary; everything
// above core/persist and core/linkstore works with catalog types only.
package models

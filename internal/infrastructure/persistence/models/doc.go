// Package models holds the GORM table mappings. Domain types in listing and
// idx carry no ORM tags; each model converts to and from its domain type
// with ToDomain and FromDomain.
package models

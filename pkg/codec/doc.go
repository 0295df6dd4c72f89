// Package codec converts graph definitions to and from a storable, name-based record.
//
// Serialization is strict: every conditional edge must name a condition registered in
// the registry, otherwise Encode fails with domain.ErrUnserializable. Deserialization is
// lenient about conditions only: a conditional edge naming a condition the current
// process has not registered is dropped with a warning, while any other malformed input
// is a hard failure.
package codec

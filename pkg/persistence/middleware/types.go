// Package middleware provides decorators for ports.RunStore that transform run records
// on their way to storage.
package middleware

import "github.com/aretw0/weft/pkg/ports"

// Middleware wraps a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain applies mws to store. The first middleware is the outermost: it sees a record
// before any other one does.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

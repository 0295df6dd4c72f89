/*
Package domain contains the core domain models of the Weft engine.

It defines the entities threaded through a run: the Execution Context (State) with its
tagged-union data store, Steps, Runs and the lifecycle events emitted by the engine.
This package is kept pure and free of external dependencies like I/O or persistence.

# Key Entities

  - State: the mutable execution context owned by exactly one run.
  - Value / Data: a sum-typed key/value store steps read and write by contract.
  - Step: a named unit of work bound to a registered tool name.
  - Run: the persisted record of one execution (boundary entity).
*/
package domain

/*
Package ports defines the driven ports (interfaces) around the Weft engine.

These interfaces decouple run dispatch from external implementations, allowing
definitions and run records to live in memory, on disk or in Redis.

# Key Interfaces

  - DefinitionStore: persists encoded graph definitions as opaque bytes.
  - RunStore: persists run records and enforces a single terminal write per run.
  - DistributedLocker: coordinates run execution across multiple instances (replicas).
  - Runner: executes a definition; implemented by the engine.
*/
package ports

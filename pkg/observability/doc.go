/*
Package observability turns engine lifecycle hooks into logs and Prometheus metrics.

Hooks are plain domain.LifecycleHooks values; MergeHooks combines several of them so
logging and metrics can be attached to the same engine.
*/
package observability

// Package http exposes graph creation, run submission and run inspection over REST,
// routed with chi. The API is described by the embedded openapi.yaml.
package http

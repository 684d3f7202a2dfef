// Package services implements the driving port interfaces.
// Services contain the retrieval pipeline logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO and never import adapters.
package services

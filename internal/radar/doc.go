// Package radar holds the version tracking core: the extractor that pulls a
// version string out of page markup, the detector that compares it with the
// stored record, and the runner that drives one fetch/extract/detect cycle.
//
// Collaborators (page fetcher, version store, notifier, clock) are declared as
// interfaces in interfaces.go and implemented in sibling packages.
package radar

// Package pedigree implements consanguinity analysis over herd pedigrees:
// ancestor resolution, generation-depth detection, relationship
// classification, breeding recommendations, and seasonal breeding analysis.
//
// Every function here is synchronous and works on an explicit population
// snapshot passed by the caller; nothing in the package holds shared state.
package pedigree

// Package match scores retailer products against external beer candidates
// and decides link / ambiguous / unmatched.
//
// The heuristics are beer-catalog specific: name and brewery similarity
// carry the decision, style compatibility and ABV closeness act as
// tie-breakers. All thresholds and weights are configuration so operators
// can retune matching without a redeploy.
//
// A failed candidate lookup is reported as a transient error, never as an
// Unmatched decision; conflating the two would slowly mark perfectly
// matchable products as having no counterpart.
package match

// Package normalize canonicalizes free-text catalog fields.
//
// Both the matcher and the differ compare fields that two upstreams spell
// differently: casing, diacritics, embedded package sizes ("33cl",
// "6-pack") and inconsistent whitespace. Normalize folds all of that into
// a stable lowercase form so comparisons see identity, not formatting.
//
// Normalize is a pure function and idempotent: applying it twice yields
// the same result as applying it once.
package normalize

// Package enrich exposes the engine's results over HTTP: active links,
// enriched product views with community ratings and value scores, change
// feeds per cycle, and the manual curation of links.
package enrich

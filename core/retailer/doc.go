// Package retailer pulls the product catalog from the retailer's paged
// JSON API.
//
// The adapter is the engine's only write-free view of the retailer: it
// walks every configured category page by page, tolerates loosely typed
// payload fields, and skips malformed records instead of failing the page.
// All requests pass through the shared rate limiter.
package retailer

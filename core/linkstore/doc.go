// Package linkstore maintains product-to-beer links through their lifecycle.
//
// Every operation works on a caller-supplied *gorm.DB so the cycle commit
// can run link maintenance inside its transaction. The invariant the store
// enforces is that a product has at most one active link; manual links are
// never overwritten by automatic matching.
package linkstore

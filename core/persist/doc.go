// Package persist implements the sync engine's persistence boundary.
//
// It commits a cycle's products, snapshot, change events and link decisions
// in one transaction, selects the products due for matching, and retires
// products no pull has seen for too long.
package persist

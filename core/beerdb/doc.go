// Package beerdb talks to the community beer database.
//
// The client serves the matcher's candidate lookups. Records resolved by
// id are cached in the database with a TTL so reaffirmation of existing
// links rarely costs an upstream call; concurrent lookups for the same key
// collapse through singleflight. Every outbound request passes through the
// shared rate limiter, which keeps the matching worker pool inside the
// upstream's call budget.
package beerdb

// Package ratecard defines the TV program rate card and the stores it is read
// from.
//
// A Program is immutable reference data: one channel/day/time/slot offering
// with a base cost and a rating for the selected target audience. Numeric
// columns are kept in their stored form (any) because upstream catalog data
// may be incomplete; callers coerce them when pricing.
package ratecard

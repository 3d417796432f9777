// Package pointcloud owns the feature-point aggregation engine.
//
// Responsibilities: per-identifier observation histories, duplicate
// suppression on append, and the three derived collections (full union,
// per-identifier mean, per-identifier mean with distance z-score filtering).
// Key types: Aggregator, Feature, Mode.
//
// The flat "x y z" text format written by ExportXYZ is the only output
// format. No tracking or frame reconciliation happens here: identifiers are
// taken as given by the capture source.
package pointcloud

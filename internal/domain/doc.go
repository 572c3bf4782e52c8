// Package domain models the outdoor-activity weather check: the request a user
// submits, the opaque results returned by the remote scoring service, and the
// small amount of client-side logic that interprets them.
//
// # Requests
//
// A [CheckRequest] names a location, an ISO calendar date, and one of a fixed
// set of activities:
//
//	Hiking | Cycling | Picnic | Running / Outdoor Sports | Outdoor Market
//
// The date must fall inside [today, today+1 year]. "Today" comes from the
// package clock so tests can pin it via [SetClock]. Validation never reaches
// the network; failures are reported as [*ValidationError].
//
// # Results
//
// The remote service answers with [CheckResult], [TrendResult] and
// [ComparisonResult]. Two response shapes exist in the wild: a minimal one and
// a richer one carrying a UV index and a temperature percentile distribution.
// Both decode into the same types; the extended fields are pointers and every
// consumer must tolerate nil.
//
// Comparison ranking:
//
//	best_location is the entry with the highest score.
//	Ties resolve to the first such entry in response order.
//	Display order is score descending, stable on ties. See [ComparisonResult.Ranked].
//
// # Reverse geocoding
//
// A map click is turned into a place name by [Resolver]. The fallback chain is
//
//	city → town → village → first segment of display_name → "lat, lng"
//
// with coordinates formatted to four decimal places. Resolution never fails:
// any geocoder error yields the coordinate string.
//
// # Export filenames
//
// Downloads are named weather_<location>_<date>.<ext>. The location is reduced
// to letters, digits, '-' and '.'; other runs of characters become a single
// underscore. See [ExportFilename].
package domain

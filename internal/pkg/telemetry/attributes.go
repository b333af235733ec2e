package telemetry

// Span attribute keys shared by the use cases and adapters.
const (
	AttrTargetID     = "geofence.target_id"
	AttrRadiusMeters = "geofence.radius_meters"
	AttrStrategy     = "geofence.strategy"
	AttrCandidates   = "geofence.candidates"
	AttrValid        = "geofence.valid"
)

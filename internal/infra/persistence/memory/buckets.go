package memory

// Bucket names one snapshot map for backends that persist state as one
// serialized payload per bucket.
type Bucket struct {
	Name   string
	Target any
}

// Buckets returns pointers to every map of s keyed by stable bucket names.
// Backends marshal Target on write and unmarshal into it on load.
func Buckets(s *Snapshot) []Bucket {
	return []Bucket{
		{Name: "collections", Target: &s.Collections},
		{Name: "seed_batches", Target: &s.SeedBatches},
		{Name: "germinations", Target: &s.Germinations},
		{Name: "germination_events", Target: &s.GerminationEvents},
		{Name: "cultivations", Target: &s.Cultivations},
		{Name: "cultivation_events", Target: &s.CultivationEvents},
		{Name: "subgroups", Target: &s.Subgroups},
		{Name: "images", Target: &s.Images},
	}
}

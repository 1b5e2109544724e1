package shm

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// hostedRegions holds every region hosted by this process, keyed by name.
// It is process-global: two Managers in one process share one namespace,
// since clients can only tell regions apart by name and pid.
var hostedRegions = newRegionRegistry()

type regionRegistry struct {
	regions cmap.ConcurrentMap[string, *Region]
}

func newRegionRegistry() *regionRegistry {
	return &regionRegistry{regions: cmap.New[*Region]()}
}

// reserve claims name for region. It reports false if name is taken.
func (r *regionRegistry) reserve(name string, region *Region) bool {
	return r.regions.SetIfAbsent(name, region)
}

// release drops name only if it is still held by region.
func (r *regionRegistry) release(name string, region *Region) {
	r.regions.RemoveCb(name, func(_ string, held *Region, exists bool) bool {
		return exists && held == region
	})
}

func (r *regionRegistry) lookup(name string) (*Region, bool) {
	return r.regions.Get(name)
}

func (r *regionRegistry) snapshot() []*Region {
	items := r.regions.Items()
	out := make([]*Region, 0, len(items))
	for _, region := range items {
		out = append(out, region)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Regions returns the regions currently hosted by this process, sorted by
// name. Regions still being created are included.
func Regions() []*Region {
	return hostedRegions.snapshot()
}

// Lookup returns the region hosted by this process under name.
func Lookup(name string) (*Region, bool) {
	return hostedRegions.lookup(name)
}

package repo

// State names where a Repository sits in the lifecycle spec.md §4.5
// diagrams: New before anything has been loaded, LoadedFetch/LoadedCache
// after metadata lands by fetch or by cache hit, Written once fetched
// metadata has been committed to the on-disk cache, and Ready once a
// consumer (the sack) has successfully loaded it.
type State int

const (
	StateNew State = iota
	StateLoadedFetch
	StateLoadedCache
	StateWritten
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLoadedFetch:
		return "loaded_fetch"
	case StateLoadedCache:
		return "loaded_cache"
	case StateWritten:
		return "written"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

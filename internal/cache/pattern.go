package cache

import "strconv"

type patternKind int

const (
	kindRecord patternKind = iota
	kindListings
	kindEverything
)

// Pattern selects the entries an invalidation applies to.
type Pattern struct {
	kind patternKind
	id   int64
}

// RecordKey matches the detail entry of one record.
func RecordKey(id int64) Pattern { return Pattern{kind: kindRecord, id: id} }

// AllListings matches every listing page regardless of criteria.
func AllListings() Pattern { return Pattern{kind: kindListings} }

// Everything matches every entry in the cache.
func Everything() Pattern { return Pattern{kind: kindEverything} }

func (p Pattern) String() string {
	switch p.kind {
	case kindRecord:
		return "record:" + strconv.FormatInt(p.id, 10)
	case kindListings:
		return "listings:*"
	default:
		return "*"
	}
}

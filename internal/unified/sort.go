package unified

import (
	"sort"
	"strings"
)

// SortKey names a sortable dimension of the canonical collection.
type SortKey string

const (
	SortByTime      SortKey = "time"
	SortByName      SortKey = "name"
	SortByNode      SortKey = "node"
	SortByVMID      SortKey = "vmid"
	SortBySource    SortKey = "source"
	SortBySize      SortKey = "size"
	SortByStorage   SortKey = "storage"
	SortByVerified  SortKey = "verified"
	SortByGuestType SortKey = "guestType"
	SortByOwner     SortKey = "owner"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortKey maps a request parameter to a sort key, defaulting to time
// for anything unrecognized.
func ParseSortKey(raw string) SortKey {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "name":
		return SortByName
	case "node":
		return SortByNode
	case "vmid":
		return SortByVMID
	case "source", "provenance":
		return SortBySource
	case "size":
		return SortBySize
	case "storage":
		return SortByStorage
	case "verified":
		return SortByVerified
	case "type", "guesttype":
		return SortByGuestType
	case "owner":
		return SortByOwner
	default:
		return SortByTime
	}
}

// ParseSortOrder maps a request parameter to an order, defaulting to
// descending (newest first).
func ParseSortOrder(raw string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(raw), "asc") {
		return SortAsc
	}
	return SortDesc
}

// sortValue is the extracted comparable for one record under one key. A
// value with ok=false is "missing" and sorts after every present value
// regardless of direction.
type sortValue struct {
	num     int64
	str     string
	numeric bool
	ok      bool
}

func extractSortValue(b Backup, key SortKey) sortValue {
	switch key {
	case SortByTime:
		return sortValue{num: b.Time, numeric: true, ok: true}
	case SortByVMID:
		if n, ok := b.VMIDNumeric(); ok {
			return sortValue{num: n, numeric: true, ok: true}
		}
		return sortValue{}
	case SortBySize:
		if b.Size == nil {
			return sortValue{}
		}
		return sortValue{num: *b.Size, numeric: true, ok: true}
	case SortByName:
		return stringValue(b.GuestName)
	case SortByNode:
		return stringValue(b.Node)
	case SortBySource:
		return stringValue(string(b.Provenance))
	case SortByStorage:
		// Remote records carry the datastore where local ones carry a
		// storage name; fall through so they interleave meaningfully.
		if b.Storage != "" {
			return stringValue(b.Storage)
		}
		return stringValue(b.Datastore)
	case SortByVerified:
		v := int64(0)
		if b.Verified {
			v = 1
		}
		return sortValue{num: v, numeric: true, ok: true}
	case SortByGuestType:
		return stringValue(string(b.GuestType))
	case SortByOwner:
		return stringValue(b.Owner)
	default:
		return sortValue{num: b.Time, numeric: true, ok: true}
	}
}

func stringValue(s string) sortValue {
	if s == "" {
		return sortValue{}
	}
	return sortValue{str: strings.ToLower(s), ok: true}
}

// compare returns <0, 0, >0 for present values under ascending semantics.
func compare(a, b sortValue) int {
	if a.numeric {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.str, b.str)
}

// Sort orders the collection in place. Missing values always land at the
// end; ties keep their incoming order.
func Sort(backups []Backup, key SortKey, order SortOrder) {
	sort.SliceStable(backups, func(i, j int) bool {
		a := extractSortValue(backups[i], key)
		b := extractSortValue(backups[j], key)
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		cmp := compare(a, b)
		if order == SortDesc {
			return cmp > 0
		}
		return cmp < 0
	})
}

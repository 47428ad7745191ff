// Package unified reconciles the raw backup inventories reported by PVE,
// PBS, and PMG sources into one canonical, queryable collection. Every
// function here is a pure computation over a state snapshot; nothing is
// cached between calls.
package unified

import (
	"fmt"
	"strconv"
)

// Provenance says which kind of source a canonical record came from.
type Provenance string

const (
	// ProvenanceSnapshot marks VM/CT snapshots.
	ProvenanceSnapshot Provenance = "snapshot"
	// ProvenanceLocal marks backups discovered through a PVE storage
	// listing, including volumes that physically live on a PBS-backed
	// storage, and PMG host config backups.
	ProvenanceLocal Provenance = "local"
	// ProvenanceRemote marks backups discovered through the backup
	// server's own inventory.
	ProvenanceRemote Provenance = "remote"
)

// GuestType is the display classification of the backed-up guest.
type GuestType string

const (
	GuestTypeVM   GuestType = "VM"
	GuestTypeLXC  GuestType = "LXC"
	GuestTypeHost GuestType = "Host"
)

// RootNamespace is the sentinel for the PBS root namespace. Namespace is
// never stored as an empty string.
const RootNamespace = "root"

// Backup is the canonical record the query, sort, group, and aggregation
// stages operate on. Exactly one exists per physical backup no matter how
// many sources reported it.
type Backup struct {
	ID          string     `json:"id"`
	Provenance  Provenance `json:"provenance"`
	GuestID     string     `json:"guestId"` // numeric VMID, or node/filename for host backups
	GuestName   string     `json:"guestName"`
	GuestType   GuestType  `json:"guestType"`
	Node        string     `json:"node"`
	Instance    string     `json:"instance"`
	Time        int64      `json:"time"` // Unix seconds; 0 when the source timestamp was unparseable
	Label       string     `json:"label,omitempty"`
	Description string     `json:"description,omitempty"`
	Size        *int64     `json:"size"`
	Storage     string     `json:"storage,omitempty"`
	Datastore   string     `json:"datastore,omitempty"`
	Namespace   string     `json:"namespace,omitempty"`
	Verified    bool       `json:"verified"`
	Protected   bool       `json:"protected"`
	Encrypted   bool       `json:"encrypted"`
	Owner       string     `json:"owner,omitempty"`
}

// VMIDNumeric returns the numeric guest id and whether the coercion
// succeeded. Host backups carry node names or filenames here, which never
// coerce.
func (b Backup) VMIDNumeric() (int64, bool) {
	n, err := strconv.ParseInt(b.GuestID, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// sourceRank orders provenances for the dedup pass. Lower wins: when the
// same physical backup shows up both in the PBS inventory and in a PVE
// storage listing, the PBS record is the richer one and must survive.
func sourceRank(p Provenance, hostConfig bool) int {
	switch {
	case p == ProvenanceRemote:
		return 0
	case hostConfig:
		return 1
	case p == ProvenanceLocal:
		return 2
	default:
		return 3
	}
}

// synthesizedName builds the fallback guest label used when the registry
// has no display name for a guest.
func synthesizedName(t GuestType, guestID string) string {
	return fmt.Sprintf("%s %s", t, guestID)
}

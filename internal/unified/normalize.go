package unified

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vaultscope/vaultscope/internal/models"
)

// encryptedFileSuffix marks client-side encrypted archive files in PBS
// backup manifests.
const encryptedFileSuffix = ".enc"

// candidate pairs a normalized record with its dedup key and source
// priority rank for the merge pass.
type candidate struct {
	backup Backup
	key    string
	rank   int
}

// Collect normalizes every raw record in the snapshot and merges them into
// the canonical collection. Records are sorted by source priority before
// the dedup pass, so the PBS-native representation of a backup always beats
// the PVE storage listing of the same archive. The seen-set lives only for
// the duration of this call.
func Collect(snap models.StateSnapshot) []Backup {
	candidates := make([]candidate, 0,
		len(snap.PBSBackups)+len(snap.PMGBackups)+
			len(snap.PVEBackups.StorageBackups)+len(snap.PVEBackups.GuestSnapshots))

	for _, b := range snap.PBSBackups {
		candidates = append(candidates, normalizePBS(b))
	}
	for _, b := range snap.PMGBackups {
		candidates = append(candidates, normalizePMG(b))
	}
	for _, b := range snap.PVEBackups.StorageBackups {
		c, ok := normalizeStorage(b)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}
	for _, s := range snap.PVEBackups.GuestSnapshots {
		candidates = append(candidates, normalizeSnapshot(s, snap))
	}

	// Explicit prioritized merge: rank decides who wins a key collision,
	// not the order the sources happened to be appended in.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].rank < candidates[j].rank
	})

	seen := make(map[string]struct{}, len(candidates))
	out := make([]Backup, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if _, dup := seen[c.key]; dup {
			dropped++
			continue
		}
		seen[c.key] = struct{}{}
		out = append(out, c.backup)
	}

	if dropped > 0 {
		log.Debug().
			Int("candidates", len(candidates)).
			Int("duplicates", dropped).
			Msg("Suppressed duplicate backup records during unify pass")
	}
	return out
}

// HasHostBackups reports whether the canonical collection contains any
// host-type records. The presentation layer relabels its guest column when
// it does.
func HasHostBackups(backups []Backup) bool {
	for _, b := range backups {
		if b.GuestType == GuestTypeHost {
			return true
		}
	}
	return false
}

func normalizeSnapshot(s models.GuestSnapshot, snap models.StateSnapshot) candidate {
	guestType := GuestTypeLXC
	if s.Type == "qemu" {
		guestType = GuestTypeVM
	}

	guestID := fmt.Sprintf("%d", s.VMID)
	name := snap.GuestName(s.VMID, s.Instance)
	if name == "" {
		name = synthesizedName(guestType, guestID)
	}

	var size *int64
	if s.SizeBytes > 0 {
		v := s.SizeBytes
		size = &v
	}

	ts := s.Time.Unix()
	if s.Time.IsZero() {
		ts = 0
	}

	b := Backup{
		ID:          s.ID,
		Provenance:  ProvenanceSnapshot,
		GuestID:     guestID,
		GuestName:   name,
		GuestType:   guestType,
		Node:        s.Node,
		Instance:    s.Instance,
		Time:        ts,
		Label:       s.Name,
		Description: s.Description,
		Size:        size,
	}
	// Snapshot keys live in their own key space: a snapshot taken the same
	// second a backup ran must never be suppressed by it.
	key := fmt.Sprintf("snapshot-%s-%s-%s-%d", s.Instance, guestID, s.Name, ts)
	if b.ID == "" {
		b.ID = key
	}
	return candidate{backup: b, key: key, rank: sourceRank(ProvenanceSnapshot, false)}
}

// normalizeStorage maps one PVE storage listing entry. Returns false for
// entries that are not backups at all (templates and ISO media that slipped
// past the poller).
func normalizeStorage(s models.StorageBackup) (candidate, bool) {
	if strings.Contains(s.Volid, "vztmpl/") || strings.Contains(s.Volid, "iso/") {
		return candidate{}, false
	}

	guestType := GuestTypeLXC
	switch {
	case s.VMID == 0 || s.Type == "host":
		guestType = GuestTypeHost
	case s.Type == "qemu":
		guestType = GuestTypeVM
	}

	guestID := fmt.Sprintf("%d", s.VMID)
	if guestType == GuestTypeHost && s.VMID == 0 {
		// Host backups have no numeric VMID; keep the node name as the
		// identity rather than coercing to zero.
		guestID = s.Node
	}

	ts := s.CTime
	if ts == 0 && !s.Time.IsZero() {
		ts = s.Time.Unix()
	}

	var size *int64
	if s.Size > 0 {
		v := s.Size
		size = &v
	}

	b := Backup{
		ID:          s.ID,
		Provenance:  ProvenanceLocal, // even when the storage is PBS-backed
		GuestID:     guestID,
		GuestName:   synthesizedName(guestType, guestID),
		GuestType:   guestType,
		Node:        s.Node,
		Instance:    s.Instance,
		Time:        ts,
		Label:       s.Volid,
		Description: s.Notes,
		Size:        size,
		Storage:     s.Storage,
		Verified:    s.Verified,
		Protected:   s.Protected,
		Encrypted:   s.Encrypted,
	}
	key := fmt.Sprintf("%s-%d", guestID, ts)
	if b.ID == "" {
		b.ID = fmt.Sprintf("%s-%s-%s", s.Instance, s.Storage, key)
	}
	return candidate{backup: b, key: key, rank: sourceRank(ProvenanceLocal, false)}, true
}

func normalizePBS(p models.PBSBackup) candidate {
	guestType := resolvePBSGuestType(p.VMID, p.BackupType)

	guestID := p.VMID
	if guestID == "" {
		guestID = p.Instance
	}

	ts := parseBackupTime(p.BackupTime)

	var size *int64
	if p.Size > 0 {
		v := p.Size
		size = &v
	}

	namespace := p.Namespace
	if namespace == "" {
		namespace = RootNamespace
	}

	b := Backup{
		ID:          p.ID,
		Provenance:  ProvenanceRemote,
		GuestID:     guestID,
		GuestName:   synthesizedName(guestType, guestID),
		GuestType:   guestType,
		Node:        p.Instance,
		Instance:    p.Instance,
		Time:        ts,
		Description: p.Comment,
		Size:        size,
		Datastore:   p.Datastore,
		Namespace:   namespace,
		Verified:    p.Verified,
		Protected:   p.Protected,
		Encrypted:   detectEncryption(p.Files),
		Owner:       p.Owner,
	}
	key := fmt.Sprintf("%s-%d", guestID, ts)
	if b.ID == "" {
		b.ID = fmt.Sprintf("pbs-%s-%s-%s-%s-%d", p.Instance, p.Datastore, namespace, guestID, ts)
	}
	return candidate{backup: b, key: key, rank: sourceRank(ProvenanceRemote, false)}
}

func normalizePMG(p models.PMGBackup) candidate {
	guestID := p.Node
	if guestID == "" {
		guestID = p.Filename
	}

	ts := parseBackupTime(p.BackupTime)

	var size *int64
	if p.Size > 0 {
		v := p.Size
		size = &v
	}

	b := Backup{
		ID:         p.ID,
		Provenance: ProvenanceLocal,
		GuestID:    guestID,
		GuestName:  synthesizedName(GuestTypeHost, guestID),
		GuestType:  GuestTypeHost,
		Node:       p.Node,
		Instance:   p.Instance,
		Time:       ts,
		Label:      p.Filename,
		Size:       size,
	}
	key := p.ID
	if key == "" {
		key = fmt.Sprintf("%s-%s-%s", p.Instance, p.Node, p.Filename)
	}
	if b.ID == "" {
		b.ID = key
	}
	return candidate{backup: b, key: key, rank: sourceRank(ProvenanceLocal, true)}
}

// resolvePBSGuestType checks, in order: explicit zero/host tag, explicit vm
// tag, explicit container tag. Anything else counts as a container.
func resolvePBSGuestType(vmid, backupType string) GuestType {
	switch {
	case vmid == "0" || backupType == "host":
		return GuestTypeHost
	case backupType == "vm":
		return GuestTypeVM
	case backupType == "ct":
		return GuestTypeLXC
	default:
		return GuestTypeLXC
	}
}

// detectEncryption scans a PBS file list for any entry whose crypt mode or
// filename marks it as client-side encrypted.
func detectEncryption(files []models.BackupFile) bool {
	for _, f := range files {
		if f.CryptMode == "encrypt" {
			return true
		}
		if strings.HasSuffix(f.Filename, encryptedFileSuffix) {
			return true
		}
	}
	return false
}

// backupTimeLayouts are tried in order when parsing source timestamps. PBS
// emits RFC 3339; PMG emits the same shape without a zone offset.
var backupTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseBackupTime converts an upstream ISO datetime into Unix seconds.
// Unparseable input yields zero: a visibly ancient record beats a silently
// dropped one.
func parseBackupTime(raw string) int64 {
	if raw == "" {
		return 0
	}
	for _, layout := range backupTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Unix()
		}
	}
	log.Debug().Str("timestamp", raw).Msg("Unparseable backup timestamp, defaulting to zero")
	return 0
}

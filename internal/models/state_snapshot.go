package models

import (
	"strings"
	"time"
)

// StateSnapshot is an immutable copy of State handed to readers. Every view
// computation works from a snapshot so a poll cycle finishing mid-request
// can never tear the data under it.
type StateSnapshot struct {
	VMs          []VM            `json:"vms"`
	Containers   []Container     `json:"containers"`
	PBSInstances []PBSInstance   `json:"pbs"`
	PBSBackups   []PBSBackup     `json:"pbsBackups"`
	PMGBackups   []PMGBackup     `json:"pmgBackups"`
	PVEBackups   PVEBackups      `json:"pveBackups"`
	Connection   map[string]bool `json:"connectionHealth"`
	LastUpdate   time.Time       `json:"lastUpdate"`
}

// GetSnapshot returns a deep-enough copy of the current state. Slices are
// cloned; the element structs are value types (BackupFile slices inside
// PBSBackup are shared but never mutated after ingestion).
func (s *State) GetSnapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn := make(map[string]bool, len(s.Connection))
	for k, v := range s.Connection {
		conn[k] = v
	}

	return StateSnapshot{
		VMs:          append([]VM(nil), s.VMs...),
		Containers:   append([]Container(nil), s.Containers...),
		PBSInstances: clonePBSInstances(s.PBSInstances),
		PBSBackups:   append([]PBSBackup(nil), s.PBSBackups...),
		PMGBackups:   append([]PMGBackup(nil), s.PMGBackups...),
		PVEBackups: PVEBackups{
			StorageBackups: append([]StorageBackup(nil), s.PVEBackups.StorageBackups...),
			GuestSnapshots: append([]GuestSnapshot(nil), s.PVEBackups.GuestSnapshots...),
		},
		Connection: conn,
		LastUpdate: s.LastUpdate,
	}
}

func clonePBSInstances(src []PBSInstance) []PBSInstance {
	out := make([]PBSInstance, len(src))
	for i, inst := range src {
		inst.Datastores = append([]PBSDatastore(nil), inst.Datastores...)
		out[i] = inst
	}
	return out
}

// GuestName resolves a guest display name against the snapshot's registry.
func (s StateSnapshot) GuestName(vmid int, instance string) string {
	for _, vm := range s.VMs {
		if vm.VMID == vmid && strings.EqualFold(vm.Instance, instance) {
			return vm.Name
		}
	}
	for _, ct := range s.Containers {
		if ct.VMID == vmid && strings.EqualFold(ct.Instance, instance) {
			return ct.Name
		}
	}
	return ""
}

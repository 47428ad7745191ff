package models

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// State holds the latest raw backup inventory reported by every configured
// source. Pollers replace their own instance's slice on each cycle; readers
// always go through GetSnapshot.
type State struct {
	mu           sync.RWMutex
	VMs          []VM            `json:"vms"`
	Containers   []Container     `json:"containers"`
	PBSInstances []PBSInstance   `json:"pbs"`
	PBSBackups   []PBSBackup     `json:"pbsBackups"`
	PMGBackups   []PMGBackup     `json:"pmgBackups"`
	PVEBackups   PVEBackups      `json:"pveBackups"`
	Connection   map[string]bool `json:"connectionHealth"`
	LastUpdate   time.Time       `json:"lastUpdate"`

	onChange func()
}

// VM represents a Proxmox VE virtual machine, reduced to the fields the
// guest registry needs.
type VM struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Node     string `json:"node"`
	Instance string `json:"instance"`
	VMID     int    `json:"vmid"`
	Status   string `json:"status"`
}

// Container represents a Proxmox VE LXC container.
type Container struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Node     string `json:"node"`
	Instance string `json:"instance"`
	VMID     int    `json:"vmid"`
	Status   string `json:"status"`
}

// PBSInstance represents a configured Proxmox Backup Server.
type PBSInstance struct {
	Name             string         `json:"name"`
	Host             string         `json:"host"`
	Status           string         `json:"status"`
	Datastores       []PBSDatastore `json:"datastores"`
	ConnectionHealth string         `json:"connectionHealth"`
	LastSeen         time.Time      `json:"lastSeen"`
}

// PBSDatastore represents a PBS datastore.
type PBSDatastore struct {
	Name                string  `json:"name"`
	Total               int64   `json:"total"`
	Used                int64   `json:"used"`
	Free                int64   `json:"free"`
	DeduplicationFactor float64 `json:"deduplicationFactor,omitempty"`
}

// BackupFile describes one file inside a PBS backup snapshot. CryptMode
// follows the PBS manifest values ("none", "encrypt", "sign-only").
type BackupFile struct {
	Filename  string `json:"filename"`
	CryptMode string `json:"crypt-mode,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// PBSBackup represents a backup discovered through the backup server's own
// inventory. BackupTime is the upstream ISO 8601 string; normalization into
// Unix seconds happens downstream.
type PBSBackup struct {
	ID         string       `json:"id"`
	Instance   string       `json:"instance"`
	Datastore  string       `json:"datastore"`
	Namespace  string       `json:"namespace"`
	BackupType string       `json:"backupType"` // "vm", "ct", or "host"
	VMID       string       `json:"vmid"`
	BackupTime string       `json:"backupTime"`
	Size       int64        `json:"size"`
	Protected  bool         `json:"protected"`
	Verified   bool         `json:"verified"`
	Comment    string       `json:"comment,omitempty"`
	Files      []BackupFile `json:"files,omitempty"`
	Owner      string       `json:"owner,omitempty"`
}

// PMGBackup represents a host configuration backup on a Proxmox Mail
// Gateway node. There is no VMID; identity comes from instance, node and
// filename.
type PMGBackup struct {
	ID         string `json:"id"`
	Instance   string `json:"instance"`
	Node       string `json:"node"`
	Filename   string `json:"filename"`
	BackupTime string `json:"backupTime"`
	Size       int64  `json:"size"`
}

// PVEBackups groups the backup material discovered through the PVE API.
type PVEBackups struct {
	StorageBackups []StorageBackup `json:"storageBackups"`
	GuestSnapshots []GuestSnapshot `json:"guestSnapshots"`
}

// StorageBackup represents a backup volume found in a PVE storage content
// listing. Entries whose content type is template or ISO never make it into
// the state; pollers drop them at ingestion.
type StorageBackup struct {
	ID        string    `json:"id"`
	Storage   string    `json:"storage"`
	Node      string    `json:"node"`
	Instance  string    `json:"instance"`
	Type      string    `json:"type"` // "qemu", "lxc", or "host"
	VMID      int       `json:"vmid"`
	Time      time.Time `json:"time"`
	CTime     int64     `json:"ctime"`
	Size      int64     `json:"size"`
	Notes     string    `json:"notes,omitempty"`
	Protected bool      `json:"protected"`
	Volid     string    `json:"volid"`
	IsPBS     bool      `json:"isPBS"` // storage is PBS-backed; still a PVE-side discovery
	Verified  bool      `json:"verified"`
	Encrypted bool      `json:"encrypted"`
}

// GuestSnapshot represents a VM/CT snapshot.
type GuestSnapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Node        string    `json:"node"`
	Instance    string    `json:"instance"`
	Type        string    `json:"type"` // "qemu" or "lxc"
	VMID        int       `json:"vmid"`
	Time        time.Time `json:"time"`
	Description string    `json:"description,omitempty"`
	SizeBytes   int64     `json:"sizeBytes,omitempty"`
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		VMs:          make([]VM, 0),
		Containers:   make([]Container, 0),
		PBSInstances: make([]PBSInstance, 0),
		PBSBackups:   make([]PBSBackup, 0),
		PMGBackups:   make([]PMGBackup, 0),
		PVEBackups: PVEBackups{
			StorageBackups: make([]StorageBackup, 0),
			GuestSnapshots: make([]GuestSnapshot, 0),
		},
		Connection: make(map[string]bool),
		LastUpdate: time.Now(),
	}
}

// OnChange registers a callback invoked after every state mutation. Used to
// drive WebSocket broadcasts; the callback runs outside the state lock.
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *State) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// UpdateGuestsForInstance replaces the guest registry entries for one PVE
// instance.
func (s *State) UpdateGuestsForInstance(instanceName string, vms []VM, containers []Container) {
	s.mu.Lock()
	keptVMs := make([]VM, 0, len(s.VMs)+len(vms))
	for _, vm := range s.VMs {
		if vm.Instance != instanceName {
			keptVMs = append(keptVMs, vm)
		}
	}
	s.VMs = append(keptVMs, vms...)

	keptCTs := make([]Container, 0, len(s.Containers)+len(containers))
	for _, ct := range s.Containers {
		if ct.Instance != instanceName {
			keptCTs = append(keptCTs, ct)
		}
	}
	s.Containers = append(keptCTs, containers...)
	s.LastUpdate = time.Now()
	s.mu.Unlock()
	s.notify()
}

// UpdateStorageBackupsForInstance merges storage backups for a specific
// instance with the backups already known from other instances.
func (s *State) UpdateStorageBackupsForInstance(instanceName string, backups []StorageBackup) {
	s.mu.Lock()
	backupMap := make(map[string]StorageBackup)
	for _, backup := range s.PVEBackups.StorageBackups {
		if backup.Instance != instanceName {
			backupMap[backup.ID] = backup
		}
	}
	for _, backup := range backups {
		backupMap[backup.ID] = backup
	}

	newBackups := make([]StorageBackup, 0, len(backupMap))
	for _, backup := range backupMap {
		newBackups = append(newBackups, backup)
	}
	sort.Slice(newBackups, func(i, j int) bool {
		return newBackups[i].Time.After(newBackups[j].Time)
	})

	s.PVEBackups.StorageBackups = newBackups
	s.LastUpdate = time.Now()
	s.mu.Unlock()
	s.notify()
}

// UpdateGuestSnapshotsForInstance merges guest snapshots for a specific
// instance with the snapshots already known from other instances.
func (s *State) UpdateGuestSnapshotsForInstance(instanceName string, snapshots []GuestSnapshot) {
	s.mu.Lock()
	snapshotMap := make(map[string]GuestSnapshot)
	for _, snapshot := range s.PVEBackups.GuestSnapshots {
		if snapshot.Instance != instanceName {
			snapshotMap[snapshot.ID] = snapshot
		}
	}
	for _, snapshot := range snapshots {
		snapshotMap[snapshot.ID] = snapshot
	}

	newSnapshots := make([]GuestSnapshot, 0, len(snapshotMap))
	for _, snapshot := range snapshotMap {
		newSnapshots = append(newSnapshots, snapshot)
	}
	sort.Slice(newSnapshots, func(i, j int) bool {
		return newSnapshots[i].Time.After(newSnapshots[j].Time)
	})

	s.PVEBackups.GuestSnapshots = newSnapshots
	s.LastUpdate = time.Now()
	s.mu.Unlock()
	s.notify()
}

// UpdatePBSBackups replaces the PBS backups for a specific instance.
func (s *State) UpdatePBSBackups(instanceName string, backups []PBSBackup) {
	s.mu.Lock()
	backupMap := make(map[string]PBSBackup)
	for _, backup := range s.PBSBackups {
		if backup.Instance != instanceName {
			backupMap[backup.ID] = backup
		}
	}
	for _, backup := range backups {
		backupMap[backup.ID] = backup
	}

	newBackups := make([]PBSBackup, 0, len(backupMap))
	for _, backup := range backupMap {
		newBackups = append(newBackups, backup)
	}
	sort.Slice(newBackups, func(i, j int) bool {
		return newBackups[i].ID < newBackups[j].ID
	})

	s.PBSBackups = newBackups
	s.LastUpdate = time.Now()
	s.mu.Unlock()
	s.notify()
}

// UpdatePBSInstances replaces the PBS instance list (datastore inventory,
// dedup factors).
func (s *State) UpdatePBSInstances(instances []PBSInstance) {
	s.mu.Lock()
	s.PBSInstances = append([]PBSInstance(nil), instances...)
	s.LastUpdate = time.Now()
	s.mu.Unlock()
	s.notify()
}

// UpdatePMGBackups replaces the PMG host config backups for a specific
// instance.
func (s *State) UpdatePMGBackups(instanceName string, backups []PMGBackup) {
	s.mu.Lock()
	backupMap := make(map[string]PMGBackup)
	for _, backup := range s.PMGBackups {
		if backup.Instance != instanceName {
			backupMap[backup.ID] = backup
		}
	}
	for _, backup := range backups {
		backupMap[backup.ID] = backup
	}

	newBackups := make([]PMGBackup, 0, len(backupMap))
	for _, backup := range backupMap {
		newBackups = append(newBackups, backup)
	}
	sort.Slice(newBackups, func(i, j int) bool {
		return newBackups[i].ID < newBackups[j].ID
	})

	s.PMGBackups = newBackups
	s.LastUpdate = time.Now()
	s.mu.Unlock()
	s.notify()
}

// SetConnectionHealth records whether an instance responded on its last poll.
func (s *State) SetConnectionHealth(instanceID string, healthy bool) {
	s.mu.Lock()
	s.Connection[instanceID] = healthy
	s.mu.Unlock()
}

// GuestName resolves the display name for a guest by (vmid, instance).
// Returns "" when the guest registry has no match.
func (s *State) GuestName(vmid int, instance string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
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

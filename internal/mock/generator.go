// Package mock generates a plausible multi-source backup inventory so the
// server is demonstrable without live infrastructure.
package mock

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vaultscope/vaultscope/internal/models"
)

// Config shapes the generated environment.
type Config struct {
	Instance     string
	PBSInstance  string
	PMGInstance  string
	Nodes        []string
	VMCount      int
	LXCCount     int
	BackupsPerVM int
	Seed         int64 // 0 seeds from the clock
}

// DefaultConfig is a small two-node cluster with one backup server and one
// mail gateway.
func DefaultConfig() Config {
	return Config{
		Instance:     "cluster-mock",
		PBSInstance:  "pbs-mock",
		PMGInstance:  "pmg-mock",
		Nodes:        []string{"pve1", "pve2"},
		VMCount:      6,
		LXCCount:     6,
		BackupsPerVM: 4,
	}
}

var guestNames = []string{
	"web", "db", "cache", "mail", "proxy", "build",
	"git", "dns", "vpn", "monitor", "backup", "files",
}

// Generator produces one consistent environment per instance.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

func NewGenerator(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Populate fills the state with a full inventory as of `now`. Safe to call
// repeatedly; each call replaces the previous generation.
func (g *Generator) Populate(state *models.State, now time.Time) {
	vms, cts := g.generateGuests()
	state.UpdateGuestsForInstance(g.cfg.Instance, vms, cts)

	storage, pbs := g.generateBackups(vms, cts, now)
	state.UpdateStorageBackupsForInstance(g.cfg.Instance, storage)
	state.UpdatePBSBackups(g.cfg.PBSInstance, pbs)

	state.UpdatePBSInstances(g.generatePBSInstances())
	state.UpdatePMGBackups(g.cfg.PMGInstance, g.generatePMGBackups(now))
	state.UpdateGuestSnapshotsForInstance(g.cfg.Instance, g.generateSnapshots(vms, cts, now))

	state.SetConnectionHealth(g.cfg.Instance, true)
	state.SetConnectionHealth(g.cfg.PBSInstance, true)
	state.SetConnectionHealth(g.cfg.PMGInstance, true)
}

func (g *Generator) node(i int) string {
	return g.cfg.Nodes[i%len(g.cfg.Nodes)]
}

func (g *Generator) generateGuests() ([]models.VM, []models.Container) {
	vms := make([]models.VM, 0, g.cfg.VMCount)
	for i := 0; i < g.cfg.VMCount; i++ {
		vmid := 100 + i
		vms = append(vms, models.VM{
			ID:       fmt.Sprintf("%s-vm-%d", g.cfg.Instance, vmid),
			Name:     fmt.Sprintf("%s-%02d", guestNames[i%len(guestNames)], i+1),
			Node:     g.node(i),
			Instance: g.cfg.Instance,
			VMID:     vmid,
			Status:   "running",
		})
	}

	cts := make([]models.Container, 0, g.cfg.LXCCount)
	for i := 0; i < g.cfg.LXCCount; i++ {
		vmid := 200 + i
		cts = append(cts, models.Container{
			ID:       fmt.Sprintf("%s-ct-%d", g.cfg.Instance, vmid),
			Name:     fmt.Sprintf("%s-ct-%02d", guestNames[(i+3)%len(guestNames)], i+1),
			Node:     g.node(i),
			Instance: g.cfg.Instance,
			VMID:     vmid,
			Status:   "running",
		})
	}
	return vms, cts
}

// generateBackups produces the PVE storage listings and the PBS inventory
// together. Every second guest backs up to PBS; for those guests the same
// archive appears in both listings with identical timestamps, which is
// exactly the duplicate shape the reconciler exists to collapse.
func (g *Generator) generateBackups(vms []models.VM, cts []models.Container, now time.Time) ([]models.StorageBackup, []models.PBSBackup) {
	namespaces := []string{"", "prod", "lab"}

	type guest struct {
		vmid int
		node string
		kind string // qemu | lxc
	}
	guests := make([]guest, 0, len(vms)+len(cts))
	for _, vm := range vms {
		guests = append(guests, guest{vmid: vm.VMID, node: vm.Node, kind: "qemu"})
	}
	for _, ct := range cts {
		guests = append(guests, guest{vmid: ct.VMID, node: ct.Node, kind: "lxc"})
	}

	var storage []models.StorageBackup
	var pbs []models.PBSBackup

	for gi, gu := range guests {
		onPBS := gi%2 == 0
		for b := 0; b < g.cfg.BackupsPerVM; b++ {
			at := now.AddDate(0, 0, -b).
				Add(-time.Duration(g.rng.Intn(6)) * time.Hour).
				Truncate(time.Second)
			size := int64(256<<20) + g.rng.Int63n(8<<30)

			backupType := "vm"
			ext := "vma.zst"
			if gu.kind == "lxc" {
				backupType = "ct"
				ext = "tar.zst"
			}

			if onPBS {
				files := []models.BackupFile{
					{Filename: "index.json.blob", Size: 1024},
					{Filename: "drive-scsi0.img.fidx", Size: size},
				}
				if g.rng.Intn(4) == 0 {
					files[1].CryptMode = "encrypt"
				}
				pbs = append(pbs, models.PBSBackup{
					ID:         fmt.Sprintf("%s/%s/%d/%d", g.cfg.PBSInstance, backupType, gu.vmid, at.Unix()),
					Instance:   g.cfg.PBSInstance,
					Datastore:  "ds1",
					Namespace:  namespaces[gi%len(namespaces)],
					BackupType: backupType,
					VMID:       fmt.Sprintf("%d", gu.vmid),
					BackupTime: at.UTC().Format(time.RFC3339),
					Size:       size,
					Verified:   g.rng.Intn(3) > 0,
					Protected:  b == 0 && g.rng.Intn(4) == 0,
					Files:      files,
					Owner:      "backup@pbs",
				})
				// Same archive as seen through the PVE storage listing.
				storage = append(storage, models.StorageBackup{
					ID:       fmt.Sprintf("%s-pbs-%d-%d", g.cfg.Instance, gu.vmid, at.Unix()),
					Storage:  "pbs-ds1",
					Node:     gu.node,
					Instance: g.cfg.Instance,
					Type:     gu.kind,
					VMID:     gu.vmid,
					Time:     at,
					CTime:    at.Unix(),
					Size:     size,
					Volid:    fmt.Sprintf("pbs-ds1:backup/%s/%d/%d", backupType, gu.vmid, at.Unix()),
					IsPBS:    true,
					Verified: true,
				})
				continue
			}

			storage = append(storage, models.StorageBackup{
				ID:       fmt.Sprintf("%s-local-%d-%d", g.cfg.Instance, gu.vmid, at.Unix()),
				Storage:  "local",
				Node:     gu.node,
				Instance: g.cfg.Instance,
				Type:     gu.kind,
				VMID:     gu.vmid,
				Time:     at,
				CTime:    at.Unix(),
				Size:     size,
				Notes:    "scheduled",
				Volid:    fmt.Sprintf("local:backup/vzdump-%s-%d-%d.%s", gu.kind, gu.vmid, at.Unix(), ext),
			})
		}
	}
	return storage, pbs
}

func (g *Generator) generatePBSInstances() []models.PBSInstance {
	total := int64(4) << 40
	used := int64(float64(total) * (0.3 + g.rng.Float64()*0.4))
	return []models.PBSInstance{{
		Name:             g.cfg.PBSInstance,
		Host:             g.cfg.PBSInstance + ".example.com",
		Status:           "online",
		ConnectionHealth: "healthy",
		LastSeen:         time.Now(),
		Datastores: []models.PBSDatastore{{
			Name:                "ds1",
			Total:               total,
			Used:                used,
			Free:                total - used,
			DeduplicationFactor: 8 + g.rng.Float64()*20,
		}},
	}}
}

func (g *Generator) generatePMGBackups(now time.Time) []models.PMGBackup {
	backups := make([]models.PMGBackup, 0, 3)
	for i := 0; i < 3; i++ {
		at := now.AddDate(0, 0, -7*i).Truncate(time.Second)
		backups = append(backups, models.PMGBackup{
			ID:         fmt.Sprintf("%s-%d", g.cfg.PMGInstance, at.Unix()),
			Instance:   g.cfg.PMGInstance,
			Node:       "pmg-01",
			Filename:   fmt.Sprintf("pmg-backup_%s.tgz", at.Format("2006_01_02")),
			BackupTime: at.UTC().Format(time.RFC3339),
			Size:       int64(32<<20) + g.rng.Int63n(64<<20),
		})
	}
	return backups
}

func (g *Generator) generateSnapshots(vms []models.VM, cts []models.Container, now time.Time) []models.GuestSnapshot {
	var snaps []models.GuestSnapshot
	for i, vm := range vms {
		if i%2 != 0 {
			continue
		}
		snaps = append(snaps, models.GuestSnapshot{
			ID:          fmt.Sprintf("%s-snap-vm-%d", g.cfg.Instance, vm.VMID),
			Name:        "pre-upgrade",
			Node:        vm.Node,
			Instance:    g.cfg.Instance,
			Type:        "qemu",
			VMID:        vm.VMID,
			Time:        now.Add(-time.Duration(1+g.rng.Intn(72)) * time.Hour),
			Description: "before package upgrade",
		})
	}
	for i, ct := range cts {
		if i%3 != 0 {
			continue
		}
		snaps = append(snaps, models.GuestSnapshot{
			ID:       fmt.Sprintf("%s-snap-ct-%d", g.cfg.Instance, ct.VMID),
			Name:     "clean",
			Node:     ct.Node,
			Instance: g.cfg.Instance,
			Type:     "lxc",
			VMID:     ct.VMID,
			Time:     now.Add(-time.Duration(1+g.rng.Intn(168)) * time.Hour),
		})
	}
	return snaps
}

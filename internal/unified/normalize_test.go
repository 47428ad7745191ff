package unified

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultscope/vaultscope/internal/models"
)

func testTime() time.Time {
	return time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
}

func snapshotFixture(vmid int, name string, t time.Time) models.GuestSnapshot {
	return models.GuestSnapshot{
		ID:       "snap-1",
		Name:     name,
		Node:     "pve1",
		Instance: "cluster-a",
		Type:     "qemu",
		VMID:     vmid,
		Time:     t,
	}
}

func storageFixture(vmid int, t time.Time) models.StorageBackup {
	return models.StorageBackup{
		ID:       "st-1",
		Storage:  "local",
		Node:     "pve1",
		Instance: "cluster-a",
		Type:     "qemu",
		VMID:     vmid,
		CTime:    t.Unix(),
		Size:     1024,
		Volid:    "local:backup/vzdump-qemu-100.vma.zst",
	}
}

func pbsFixture(vmid string, t time.Time) models.PBSBackup {
	return models.PBSBackup{
		ID:         "pbs-1",
		Instance:   "pbs-main",
		Datastore:  "store1",
		BackupType: "vm",
		VMID:       vmid,
		BackupTime: t.Format(time.RFC3339),
		Size:       2048,
	}
}

func TestNormalizeSnapshotGuestTypesAndNames(t *testing.T) {
	snap := models.StateSnapshot{
		VMs: []models.VM{{VMID: 100, Instance: "cluster-a", Name: "web-01"}},
	}

	qemu := snapshotFixture(100, "pre-upgrade", testTime())
	c := normalizeSnapshot(qemu, snap)
	assert.Equal(t, GuestTypeVM, c.backup.GuestType)
	assert.Equal(t, "web-01", c.backup.GuestName, "registry name is backfilled")
	assert.Equal(t, ProvenanceSnapshot, c.backup.Provenance)

	lxc := qemu
	lxc.Type = "lxc"
	lxc.VMID = 200
	c = normalizeSnapshot(lxc, snap)
	assert.Equal(t, GuestTypeLXC, c.backup.GuestType)
	assert.Equal(t, "LXC 200", c.backup.GuestName, "unknown guest falls back to a synthesized label")
}

func TestNormalizeStorageSkipsTemplatesAndISOs(t *testing.T) {
	tpl := storageFixture(0, testTime())
	tpl.Volid = "local:vztmpl/debian-12-standard.tar.zst"
	_, ok := normalizeStorage(tpl)
	assert.False(t, ok)

	iso := storageFixture(0, testTime())
	iso.Volid = "local:iso/debian-12.iso"
	_, ok = normalizeStorage(iso)
	assert.False(t, ok)

	real := storageFixture(100, testTime())
	_, ok = normalizeStorage(real)
	assert.True(t, ok)
}

func TestNormalizeStoragePBSBackedStaysLocal(t *testing.T) {
	s := storageFixture(100, testTime())
	s.IsPBS = true
	c, ok := normalizeStorage(s)
	require.True(t, ok)
	assert.Equal(t, ProvenanceLocal, c.backup.Provenance,
		"a storage listing is local no matter where the bytes live")
}

func TestNormalizeStorageHostKeepsNodeIdentity(t *testing.T) {
	s := storageFixture(0, testTime())
	s.Volid = "local:backup/pmgbackup.tgz"
	s.Type = "host"
	c, ok := normalizeStorage(s)
	require.True(t, ok)
	assert.Equal(t, GuestTypeHost, c.backup.GuestType)
	assert.Equal(t, "pve1", c.backup.GuestID)
}

func TestResolvePBSGuestType(t *testing.T) {
	cases := []struct {
		vmid       string
		backupType string
		want       GuestType
	}{
		{"0", "vm", GuestTypeHost},
		{"100", "host", GuestTypeHost},
		{"100", "vm", GuestTypeVM},
		{"200", "ct", GuestTypeLXC},
		{"200", "", GuestTypeLXC},
		{"200", "weird", GuestTypeLXC},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resolvePBSGuestType(tc.vmid, tc.backupType),
			"vmid=%s type=%s", tc.vmid, tc.backupType)
	}
}

func TestDetectEncryption(t *testing.T) {
	assert.False(t, detectEncryption(nil))
	assert.False(t, detectEncryption([]models.BackupFile{{Filename: "drive-scsi0.img.fidx"}}))
	assert.True(t, detectEncryption([]models.BackupFile{{Filename: "x", CryptMode: "encrypt"}}))
	assert.True(t, detectEncryption([]models.BackupFile{{Filename: "drive-scsi0.img.fidx.enc"}}))
}

func TestNormalizePBSRootNamespaceSentinel(t *testing.T) {
	p := pbsFixture("100", testTime())
	c := normalizePBS(p)
	assert.Equal(t, RootNamespace, c.backup.Namespace, "empty namespace maps to the root sentinel")

	p.Namespace = "prod"
	c = normalizePBS(p)
	assert.Equal(t, "prod", c.backup.Namespace)
}

func TestNormalizePMGTimestampFallback(t *testing.T) {
	p := models.PMGBackup{
		Instance:   "mail",
		Node:       "pmg-01",
		Filename:   "pmg-backup.tgz",
		BackupTime: "not-a-timestamp",
	}
	c := normalizePMG(p)
	assert.Equal(t, int64(0), c.backup.Time, "unparseable timestamps surface as epoch, not as a dropped record")
	assert.Equal(t, GuestTypeHost, c.backup.GuestType)
	assert.Equal(t, "pmg-01", c.backup.GuestID)
}

func TestParseBackupTimeLayouts(t *testing.T) {
	want := testTime().Unix()
	assert.Equal(t, want, parseBackupTime("2026-08-20T10:30:00Z"))
	assert.Equal(t, want, parseBackupTime("2026-08-20T10:30:00"))
	assert.Equal(t, int64(0), parseBackupTime(""))
	assert.Equal(t, int64(0), parseBackupTime("20/08/2026"))
}

func TestCollectDedupRemoteBeatsLocal(t *testing.T) {
	at := testTime()
	snap := models.StateSnapshot{
		PBSBackups: []models.PBSBackup{pbsFixture("100", at)},
		PVEBackups: models.PVEBackups{
			// Same guest, same second: the PVE listing of the PBS-backed
			// storage is a duplicate of the PBS inventory record.
			StorageBackups: []models.StorageBackup{func() models.StorageBackup {
				s := storageFixture(100, at)
				s.IsPBS = true
				return s
			}()},
			GuestSnapshots: []models.GuestSnapshot{snapshotFixture(100, "pre-upgrade", at)},
		},
	}

	out := Collect(snap)
	require.Len(t, out, 2, "remote record plus the snapshot survive, storage duplicate is dropped")

	var provenances []Provenance
	for _, b := range out {
		provenances = append(provenances, b.Provenance)
	}
	assert.Contains(t, provenances, ProvenanceRemote)
	assert.Contains(t, provenances, ProvenanceSnapshot)
	assert.NotContains(t, provenances, ProvenanceLocal)
}

func TestCollectLocalOnlySurvives(t *testing.T) {
	snap := models.StateSnapshot{
		PVEBackups: models.PVEBackups{
			StorageBackups: []models.StorageBackup{storageFixture(101, testTime())},
		},
	}
	out := Collect(snap)
	require.Len(t, out, 1)
	assert.Equal(t, ProvenanceLocal, out[0].Provenance)
}

func TestCollectIdempotent(t *testing.T) {
	snap := models.StateSnapshot{
		PBSBackups: []models.PBSBackup{pbsFixture("100", testTime())},
		PVEBackups: models.PVEBackups{
			StorageBackups: []models.StorageBackup{storageFixture(101, testTime())},
		},
	}
	first := Collect(snap)
	second := Collect(snap)
	assert.Equal(t, first, second)
}

func TestCollectCollapsesDuplicateRawRecords(t *testing.T) {
	b := pbsFixture("100", testTime())
	snap := models.StateSnapshot{PBSBackups: []models.PBSBackup{b, b}}
	assert.Len(t, Collect(snap), 1)
}

func TestHasHostBackups(t *testing.T) {
	assert.False(t, HasHostBackups(nil))
	assert.False(t, HasHostBackups([]Backup{{GuestType: GuestTypeVM}}))
	assert.True(t, HasHostBackups([]Backup{{GuestType: GuestTypeVM}, {GuestType: GuestTypeHost}}))
}

package unified

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func remoteBackup() Backup {
	return Backup{
		ID:          "pbs-1",
		Provenance:  ProvenanceRemote,
		GuestID:     "100",
		GuestName:   "web-01",
		GuestType:   GuestTypeVM,
		Node:        "pbs-main",
		Instance:    "pbs-main",
		Time:        1755686400,
		Description: "nightly",
		Size:        int64Ptr(2 << 30), // 2 GiB
		Datastore:   "store1",
		Namespace:   RootNamespace,
		Verified:    true,
		Owner:       "backup@pbs",
	}
}

func localBackup() Backup {
	return Backup{
		ID:         "st-1",
		Provenance: ProvenanceLocal,
		GuestID:    "101",
		GuestName:  "db-01",
		GuestType:  GuestTypeLXC,
		Node:       "pve1",
		Instance:   "cluster-a",
		Time:       1755600000,
		Label:      "local:backup/vzdump-lxc-101.tar.zst",
		Storage:    "local",
		Size:       int64Ptr(512 << 20),
	}
}

func TestParseQueryTokenKinds(t *testing.T) {
	plan := parseQuery("node:pve1, web, size>1GB")
	require.Len(t, plan.filters, 2)
	assert.Equal(t, "node", plan.filters[0].field)
	assert.Equal(t, opContains, plan.filters[0].op)
	assert.Equal(t, "size", plan.filters[1].field)
	assert.Equal(t, opGT, plan.filters[1].op)
	require.Len(t, plan.terms, 1)
	assert.Equal(t, "web", plan.terms[0])
	assert.Nil(t, plan.scope)
}

func TestParseQueryUnknownFieldIsFreeText(t *testing.T) {
	plan := parseQuery("flavor:spicy")
	assert.Empty(t, plan.filters)
	require.Len(t, plan.terms, 1)
	assert.Equal(t, "flavor:spicy", plan.terms[0])
}

func TestNamespaceScopeExactMatch(t *testing.T) {
	b := remoteBackup()

	assert.True(t, parseQuery("pbs:pbs-main:store1:root").Match(b))
	assert.True(t, parseQuery("pbs:pbs-main:store1:").Match(b), "empty segment addresses root")
	assert.True(t, parseQuery("pbs:PBS-MAIN:STORE1:ROOT").Match(b))

	assert.False(t, parseQuery("pbs:other:store1:root").Match(b))
	assert.False(t, parseQuery("pbs:pbs-main:store2:root").Match(b))
	assert.False(t, parseQuery("pbs:pbs-main:store1:prod").Match(b))

	assert.False(t, parseQuery("pbs:pbs-main:store1:root").Match(localBackup()),
		"scope queries only ever match remote records")
}

func TestFreeTextSearchesAllFields(t *testing.T) {
	b := localBackup()
	for _, q := range []string{"101", "db-01", "pve1", "vzdump", "local"} {
		assert.True(t, parseQuery(q).Match(b), "query %q", q)
	}
	assert.False(t, parseQuery("nonsense").Match(b))
}

func TestFreeTextWildcards(t *testing.T) {
	b := localBackup()
	assert.True(t, parseQuery("db-*").Match(b))
	assert.True(t, parseQuery("db-0?").Match(b))
	assert.False(t, parseQuery("web-*").Match(b))
}

func TestFiltersCombineWithAnd(t *testing.T) {
	b := remoteBackup()
	assert.True(t, parseQuery("node:pbs-main, verified:true").Match(b))
	assert.False(t, parseQuery("node:pbs-main, verified:false").Match(b))
}

func TestSizeComparisons(t *testing.T) {
	b := remoteBackup() // 2 GiB

	assert.True(t, parseQuery("size>1GB").Match(b))
	assert.True(t, parseQuery("size<3GiB").Match(b))
	assert.True(t, parseQuery("size>=2GiB").Match(b))
	assert.False(t, parseQuery("size>10GB").Match(b))

	noSize := b
	noSize.Size = nil
	assert.False(t, parseQuery("size>1B").Match(noSize), "records without a size never match a size filter")
	assert.False(t, parseQuery("size<1TB").Match(noSize))
}

func TestVMIDComparisons(t *testing.T) {
	b := remoteBackup()
	assert.True(t, parseQuery("vmid:100").Match(b))
	assert.True(t, parseQuery("vmid:10").Match(b), "the contains operator is a substring match")
	assert.True(t, parseQuery("vmid>=100").Match(b))
	assert.False(t, parseQuery("vmid>100").Match(b))

	host := b
	host.GuestID = "pmg-01"
	assert.False(t, parseQuery("vmid>50").Match(host), "non-numeric ids fail numeric comparisons")
	assert.True(t, parseQuery("vmid:pmg").Match(host))
}

func TestBooleanFilters(t *testing.T) {
	b := remoteBackup()
	assert.True(t, parseQuery("verified:true").Match(b))
	assert.True(t, parseQuery("verified:yes").Match(b))
	assert.True(t, parseQuery("verified:1").Match(b))
	assert.False(t, parseQuery("protected:true").Match(b))
	assert.True(t, parseQuery("protected:false").Match(b))
	assert.False(t, parseQuery("verified:maybe").Match(b))
}

func TestProvenanceAndOwnerFilters(t *testing.T) {
	b := remoteBackup()
	assert.True(t, parseQuery("source:remote").Match(b))
	assert.True(t, parseQuery("provenance:remote").Match(b))
	assert.False(t, parseQuery("source:local").Match(b))
	assert.True(t, parseQuery("owner:backup@pbs").Match(b))
	assert.True(t, parseQuery("type:vm").Match(b))
}

func TestEmptyQueryMatchesEverything(t *testing.T) {
	assert.True(t, parseQuery("").Match(remoteBackup()))
	assert.True(t, parseQuery("   ").Match(localBackup()))
}

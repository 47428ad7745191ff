package unified

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(backups []Backup) []string {
	out := make([]string, len(backups))
	for i, b := range backups {
		out[i] = b.ID
	}
	return out
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortByTime, ParseSortKey(""))
	assert.Equal(t, SortByTime, ParseSortKey("bogus"))
	assert.Equal(t, SortByName, ParseSortKey("NAME"))
	assert.Equal(t, SortByGuestType, ParseSortKey("type"))
	assert.Equal(t, SortBySource, ParseSortKey("provenance"))
}

func TestParseSortOrder(t *testing.T) {
	assert.Equal(t, SortDesc, ParseSortOrder(""))
	assert.Equal(t, SortDesc, ParseSortOrder("bogus"))
	assert.Equal(t, SortAsc, ParseSortOrder("ASC"))
}

func TestSortByTimeDirections(t *testing.T) {
	backups := []Backup{
		{ID: "old", Time: 100},
		{ID: "new", Time: 300},
		{ID: "mid", Time: 200},
	}

	Sort(backups, SortByTime, SortDesc)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(backups))

	Sort(backups, SortByTime, SortAsc)
	assert.Equal(t, []string{"old", "mid", "new"}, ids(backups))
}

func TestSortMissingValuesAlwaysLast(t *testing.T) {
	backups := []Backup{
		{ID: "none", Size: nil},
		{ID: "big", Size: int64Ptr(1000)},
		{ID: "small", Size: int64Ptr(10)},
	}

	Sort(backups, SortBySize, SortAsc)
	assert.Equal(t, []string{"small", "big", "none"}, ids(backups))

	Sort(backups, SortBySize, SortDesc)
	assert.Equal(t, []string{"big", "small", "none"}, ids(backups),
		"missing sizes stay last even when descending")
}

func TestSortByNameCaseInsensitiveEmptyLast(t *testing.T) {
	backups := []Backup{
		{ID: "b", GuestName: "Beta"},
		{ID: "a", GuestName: "alpha"},
		{ID: "none", GuestName: ""},
	}
	Sort(backups, SortByName, SortAsc)
	assert.Equal(t, []string{"a", "b", "none"}, ids(backups))
}

func TestSortByVMIDNumeric(t *testing.T) {
	backups := []Backup{
		{ID: "hundred", GuestID: "100"},
		{ID: "host", GuestID: "pmg-01"},
		{ID: "nine", GuestID: "9"},
	}
	Sort(backups, SortByVMID, SortAsc)
	assert.Equal(t, []string{"nine", "hundred", "host"}, ids(backups),
		"9 sorts before 100 numerically, non-numeric ids go last")
}

func TestSortStableOnTies(t *testing.T) {
	backups := []Backup{
		{ID: "first", Time: 100},
		{ID: "second", Time: 100},
		{ID: "third", Time: 100},
	}
	Sort(backups, SortByTime, SortDesc)
	assert.Equal(t, []string{"first", "second", "third"}, ids(backups))
}

func TestSortMonotonicity(t *testing.T) {
	backups := []Backup{
		{ID: "a", Time: 5},
		{ID: "b", Time: 1},
		{ID: "c", Time: 9},
		{ID: "d", Time: 3},
	}
	Sort(backups, SortByTime, SortAsc)
	require.Len(t, backups, 4)
	for i := 1; i < len(backups); i++ {
		assert.LessOrEqual(t, backups[i-1].Time, backups[i].Time)
	}
}

func TestSortByVerifiedDesc(t *testing.T) {
	backups := []Backup{
		{ID: "no", Verified: false},
		{ID: "yes", Verified: true},
	}
	Sort(backups, SortByVerified, SortDesc)
	assert.Equal(t, []string{"yes", "no"}, ids(backups))
}

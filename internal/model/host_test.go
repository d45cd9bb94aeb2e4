package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }
func strp(v string) *string { return &v }

func TestValidate(t *testing.T) {
	h := New("host1")
	require.NoError(t, h.Validate())

	bad := New("")
	require.Error(t, bad.Validate())

	dup := New("host1")
	dup.Interfaces = []Interface{{Type: 1}, {Type: 1}}
	require.Error(t, dup.Validate())

	badRegexp := New("host1")
	badRegexp.ProxyPattern = strp("(unclosed")
	require.Error(t, badRegexp.Validate())
}

func TestMergeEnabledIsOR(t *testing.T) {
	a := New("h")
	a.Enabled = false
	b := New("h")
	b.Enabled = true
	merged := Merge(a, b, nil)
	assert.True(t, merged.Enabled)
}

func TestMergeSetUnion(t *testing.T) {
	a := New("h")
	a.Properties["p1"] = true
	b := New("h")
	b.Properties["p2"] = true
	b.Properties["p1"] = true
	merged := Merge(a, b, nil)
	assert.Equal(t, []string{"p1", "p2"}, merged.SortedProperties())
}

func TestMergeImportanceMin(t *testing.T) {
	a := New("h")
	a.Importance = intp(5)
	b := New("h")
	b.Importance = intp(2)
	merged := Merge(a, b, nil)
	require.NotNil(t, merged.Importance)
	assert.Equal(t, 2, *merged.Importance)

	c := New("h")
	d := New("h")
	merged2 := Merge(c, d, nil)
	assert.Nil(t, merged2.Importance)
}

func TestMergeInterfacesSortedAndConflictDropped(t *testing.T) {
	a := New("h")
	a.Interfaces = []Interface{{Type: 2, Endpoint: "a"}}
	b := New("h")
	b.Interfaces = []Interface{{Type: 1, Endpoint: "b"}, {Type: 2, Endpoint: "conflict"}}
	merged := Merge(a, b, nil)
	require.Len(t, merged.Interfaces, 2)
	assert.Equal(t, 1, merged.Interfaces[0].Type)
	assert.Equal(t, 2, merged.Interfaces[1].Type)
	assert.Equal(t, "a", merged.Interfaces[1].Endpoint) // existing wins on conflict
}

func TestMergeInventoryKeepsExistingOnConflict(t *testing.T) {
	a := New("h")
	a.Inventory["os"] = "linux"
	b := New("h")
	b.Inventory["os"] = "windows"
	b.Inventory["location"] = "dc1"
	merged := Merge(a, b, nil)
	assert.Equal(t, "linux", merged.Inventory["os"])
	assert.Equal(t, "dc1", merged.Inventory["location"])
}

func TestMergeProxyPatternLexicographicallySmallest(t *testing.T) {
	a := New("h")
	a.ProxyPattern = strp("zzz.*")
	b := New("h")
	b.ProxyPattern = strp("aaa.*")
	merged := Merge(a, b, nil)
	require.NotNil(t, merged.ProxyPattern)
	assert.Equal(t, "aaa.*", *merged.ProxyPattern)
}

// TestMergeCommutativeAcrossPermutations asserts the determinism
// invariant from the data model: folding the same set of source hosts
// in any order produces the same final Host.
func TestMergeCommutativeAcrossPermutations(t *testing.T) {
	rows := []Host{mkRow("src1", []string{"a"}), mkRow("src2", []string{"b", "a"}), mkRow("src3", []string{"c"})}

	base := foldRows(rows)

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]Host(nil), rows...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := foldRows(shuffled)
		assert.Equal(t, base.SortedProperties(), got.SortedProperties())
		assert.Equal(t, base.SortedSources(), got.SortedSources())
		assert.Equal(t, base.Enabled, got.Enabled)
	}
}

func mkRow(source string, props []string) Host {
	h := New("foo.example.com")
	h.Enabled = true
	h.Sources[source] = true
	for _, p := range props {
		h.Properties[p] = true
	}
	return h
}

func foldRows(rows []Host) Host {
	out := rows[0].Clone()
	for _, r := range rows[1:] {
		out = Merge(out, r, nil)
	}
	return out
}

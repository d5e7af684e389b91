package engine

import (
	"context"
	"testing"

	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vs(names ...string) []version.Version {
	out := make([]version.Version, len(names))
	for i, n := range names {
		out[i] = version.MustParse(n)
	}
	return out
}

func TestFindRelevantVersionsMainCase(t *testing.T) {
	target := version.MustParse("3.4.0.1000")
	pending := vs("3.4.0.500", "3.4.0.600")
	real := []string{"3.4.0.400"}
	got := FindRelevantVersions(target, pending, real)
	require.Len(t, got, 2)
	assert.Equal(t, "3.4.0.500", got[0].String())
	assert.Equal(t, "3.4.0.600", got[1].String())
}

func TestFindRelevantVersionsInclusiveMax(t *testing.T) {
	target := version.MustParse("3.4.0.1000")
	pending := vs("3.4.0.1000")
	real := []string{"3.4.0.400"}
	got := FindRelevantVersions(target, pending, real)
	require.Len(t, got, 1)
	assert.Equal(t, "3.4.0.1000", got[0].String())
}

func TestFindRelevantVersionsExclusiveMin(t *testing.T) {
	target := version.MustParse("3.4.0.1000")
	pending := vs("3.4.0.400")
	real := []string{"3.4.0.400"}
	got := FindRelevantVersions(target, pending, real)
	assert.Empty(t, got)
}

func TestFindRelevantVersionsNoRealVersions(t *testing.T) {
	target := version.MustParse("3.4.0.1000")
	pending := vs("3.4.0.500")
	got := FindRelevantVersions(target, pending, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "3.4.0.500", got[0].String())
}

func TestFindRelevantVersionsMissedVersionsIgnoredOutsideTrain(t *testing.T) {
	target := version.MustParse("3.4.0.1000")
	pending := vs("3.5.0.100", "3.4.1.100")
	real := []string{"3.4.0.400"}
	got := FindRelevantVersions(target, pending, real)
	assert.Empty(t, got)
}

func TestMergePendingVersionsCreatesTargetAndAssignsFixVersion(t *testing.T) {
	gw := newFakeGateway()
	gw.versions["SER"] = []string{"3.4.0.400"}
	k1 := model.IssueKey{Project: "SER", Number: 1}
	k2 := model.IssueKey{Project: "SER", Number: 2}
	pending := map[model.IssueKey][]string{
		k1: {"3.4.0.500", "3.4.0.600"},
		k2: {"3.4.0.300"},
	}

	assignments, err := MergePendingVersions(context.Background(), gw, ForReal, "SER", "3.4.0.1000", pending)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, k1, assignments[0].Key)
	assert.ElementsMatch(t, []string{"3.4.0.500", "3.4.0.600"}, assignments[0].Versions)

	assert.Contains(t, gw.versions["SER"], "3.4.0.1000")
	assert.Equal(t, []string{"3.4.0.1000"}, gw.fixVersions[k1])
	assert.Empty(t, gw.fixVersions[k2])
	assert.Equal(t, "", gw.issues[k1].PendingVersion)
}

func TestMergePendingVersionsDryRunDoesNotMutate(t *testing.T) {
	gw := newFakeGateway()
	gw.versions["SER"] = []string{"3.4.0.400"}
	key := model.IssueKey{Project: "SER", Number: 1}
	pending := map[model.IssueKey][]string{key: {"3.4.0.500"}}

	assignments, err := MergePendingVersions(context.Background(), gw, DryRun, "SER", "3.4.0.1000", pending)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.NotContains(t, gw.versions["SER"], "3.4.0.1000")
	assert.Empty(t, gw.fixVersions[key])
}

func TestMergePendingVersionsNoRelevantVersionSkipped(t *testing.T) {
	gw := newFakeGateway()
	gw.versions["SER"] = []string{"2.0.0.0"}
	key := model.IssueKey{Project: "SER", Number: 1}
	pending := map[model.IssueKey][]string{key: {"2.0.0.0"}}

	assignments, err := MergePendingVersions(context.Background(), gw, ForReal, "SER", "2.0.0.100", pending)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestAddPendingVersionAppendsSortedDeduped(t *testing.T) {
	gw := newFakeGateway()
	key := model.IssueKey{Project: "HUB", Number: 1}
	issue := Issue{Key: key, PendingVersion: "1.5.0, 1.4.0"}

	require.NoError(t, AddPendingVersion(context.Background(), gw, issue, "1.4.5"))
	assert.Equal(t, "1.4.0, 1.4.5, 1.5.0", gw.issues[key].PendingVersion)
}

func TestAddPendingVersionIgnoresDuplicate(t *testing.T) {
	gw := newFakeGateway()
	key := model.IssueKey{Project: "HUB", Number: 1}
	issue := Issue{Key: key, PendingVersion: "1.4.0"}

	require.NoError(t, AddPendingVersion(context.Background(), gw, issue, "1.4.0"))
	assert.Equal(t, "1.4.0", gw.issues[key].PendingVersion)
}

func TestAddPendingVersionEmptyIsNoop(t *testing.T) {
	gw := newFakeGateway()
	key := model.IssueKey{Project: "HUB", Number: 1}
	issue := Issue{Key: key, PendingVersion: "1.4.0"}

	require.NoError(t, AddPendingVersion(context.Background(), gw, issue, ""))
	_, ok := gw.issues[key]
	assert.False(t, ok)
}

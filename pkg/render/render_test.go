package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/name"
	"github.com/couchbase/topogen/common/topologyset"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

func placedTree(t *testing.T, count uint) *hosttree.Host {
	root := hosttree.New(name.New("cluster"), hosttree.HostConfig{})
	dc := root.AddChild("dc-1", hosttree.HostConfig{})
	dc.AddChild("server-1", hosttree.HostConfig{Address: hosttree.MustParseAddress("10.0.0.1")})
	dc.AddChild("server-2", hosttree.HostConfig{Address: hosttree.MustParseAddress("10.0.0.2")})

	root.Push(topologyset.Expand([]topologyset.TopologySet{{
		Name:             "storage",
		ReplicasetsCount: ptr.To(count),
		FailureDomains:   []string{"dc-1"},
	}})...)
	require.NoError(t, root.Spread())
	return root
}

func TestTree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{}).Tree(&buf, placedTree(t, 2)))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	require.True(t, strings.HasPrefix(lines[0], "HOST"))
	require.Contains(t, lines[3], "server-1 (10.0.0.1)")
	require.Regexp(t, `storage-1\s+8081\s+3031\s+-\s+dc-1`, lines[4])
	require.Regexp(t, `storage-2\s+8081\s+3031\s+-\s+dc-1`, lines[6])
	require.NotContains(t, out, "\x1b[")
}

func TestTreeColor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Color: true}).Tree(&buf, placedTree(t, 1)))
	require.Contains(t, buf.String(), "\x1b[32m")
}

func TestChanges(t *testing.T) {
	changes := []hosttree.Change{
		{Kind: hosttree.ChangeRemoved, Name: name.New("cluster", "server-2")},
		{Kind: hosttree.ChangeAdded, Name: name.New("cluster", "server-3")},
	}

	var buf bytes.Buffer
	require.NoError(t, New(Options{}).Changes(&buf, changes))
	require.Equal(t, "- server-2\n+ server-3\n", buf.String())

	buf.Reset()
	require.NoError(t, New(Options{Color: true}).Changes(&buf, changes))
	require.Contains(t, buf.String(), "\x1b[31m- server-2")
	require.Contains(t, buf.String(), "\x1b[32m+ server-3")
}

func TestQueues(t *testing.T) {
	old := placedTree(t, 3)

	var buf bytes.Buffer
	require.NoError(t, New(Options{}).Queues(&buf, old))
	require.Equal(t, 3, strings.Count(buf.String(), "+ "))
	require.NotContains(t, buf.String(), "- ")

	next := hosttree.New(name.New("cluster"), hosttree.HostConfig{})
	dc := next.AddChild("dc-1", hosttree.HostConfig{})
	dc.AddChild("server-1", hosttree.HostConfig{})
	dc.AddChild("server-2", hosttree.HostConfig{})
	next.Push(topologyset.Expand([]topologyset.TopologySet{{
		Name:             "storage",
		ReplicasetsCount: ptr.To[uint](2),
	}})...)

	_, err := hosttree.Merge(old, next, false)
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, New(Options{}).Queues(&buf, old))
	require.Regexp(t, `- storage-3\s+server-1`, buf.String())
	require.NotContains(t, buf.String(), "+ ")
}

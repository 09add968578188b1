package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Store)
		want  string
	}{
		{
			name:  "empty store",
			build: func(*Store) {},
			want:  "digraph G {\n}\n",
		},
		{
			name: "edges in insertion order",
			build: func(s *Store) {
				s.AddEdge("a@x.com", "b@x.com", "<1>")
				s.AddEdge("a@x.com", "c@x.com", "<1>")
				s.AddEdge("c@x.com", "a@x.com", "<2>")
			},
			want: "digraph G {\n" +
				"    \"a@x.com\" -> \"b@x.com\" [ label = \"<1>\" ];\n" +
				"    \"a@x.com\" -> \"c@x.com\" [ label = \"<1>\" ];\n" +
				"    \"c@x.com\" -> \"a@x.com\" [ label = \"<2>\" ];\n" +
				"}\n",
		},
		{
			name: "isolated nodes omitted",
			build: func(s *Store) {
				s.GetOrCreateNode("lonely@x.com")
				s.AddEdge("a@x.com", "b@x.com", "<1>")
			},
			want: "digraph G {\n" +
				"    \"a@x.com\" -> \"b@x.com\" [ label = \"<1>\" ];\n" +
				"}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			tt.build(s)
			assert.Equal(t, tt.want, Serialize(s))
		})
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	s := NewStore()
	s.AddEdge("a@x.com", "b@x.com", "<1>")
	s.AddEdge("b@x.com", "a@x.com", "<2>")

	first := Serialize(s)
	second := Serialize(s)
	assert.Equal(t, first, second)

	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, s))
	assert.Equal(t, first, buf.String())
}

func TestWriteListing(t *testing.T) {
	s := NewStore()
	s.GetOrCreateNode("lonely@x.com")
	s.AddEdge("a@x.com", "b@x.com", "<1>")

	var buf bytes.Buffer
	require.NoError(t, WriteListing(&buf, s))
	assert.Equal(t, "lonely@x.com\na@x.com\nb@x.com\n"+listingSeparator+"\na@x.com -> b@x.com\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.gv")

	s := NewStore()
	s.AddEdge("a@x.com", "b@x.com", "<1>")
	require.NoError(t, WriteFile(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Serialize(s), string(data))

	s.AddEdge("b@x.com", "a@x.com", "<2>")
	require.NoError(t, WriteFile(path, s))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Serialize(s), string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "graph.gv")
	err := WriteFile(path, NewStore())
	assert.Error(t, err)
}

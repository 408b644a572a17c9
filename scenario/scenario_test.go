package scenario

import (
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	scenarios, err := Builtin()
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			report, err := s.Run()
			require.NoError(t, err)
			require.True(t, report.Passed, "failures: %v", report.Failures)
		})
	}
}

func TestLoadFile(t *testing.T) {
	scenarios, err := LoadFile("testdata/tunnel.yaml")
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	tunnel := scenarios[0]
	require.Equal(t, graph.Config{RenderDistance: 6, MinSectionY: -1, MaxSectionY: 1}, tunnel.Graph)
	require.Len(t, tunnel.Sections, 5)
	require.Equal(t, graph.Opaque.Connect(graph.NegZ, graph.PosZ), tunnel.Sections[1].Visibility())
	require.Equal(t, graph.Opaque, tunnel.Sections[3].Visibility())
	require.Equal(t, graph.Transparent, tunnel.Sections[4].Visibility())

	flags, err := tunnel.Sections[1].SectionFlags()
	require.NoError(t, err)
	require.Equal(t, graph.HasBlockGeometry|graph.HasAnimatedSprites, flags)

	for _, s := range scenarios {
		report, err := s.Run()
		require.NoError(t, err)
		require.True(t, report.Passed, "%s: %v", s.Name, report.Failures)
	}

	_, err = LoadFile("testdata/missing.yaml")
	require.Error(t, err)
}

func TestRunReportsFailures(t *testing.T) {
	scenarios, err := Load(strings.NewReader(`
name: wrong expectations
graph:
  render_distance: 2
sections:
  - at: {x: 0, y: 0, z: 0}
camera: [8, 8, 8]
search_distance: 64
expect:
  visible:
    - {x: 1, y: 0, z: 0}
  hidden:
    - {x: 0, y: 0, z: 0}
  count: 3
  receipt: "0x01"
`))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	report, err := scenarios[0].Run()
	require.NoError(t, err)
	require.False(t, report.Passed)
	require.Len(t, report.Failures, 4)
	require.Equal(t, []graph.SectionCoord{{}}, report.Visible)
	require.Equal(t, 1, report.Stats.Visible)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "malformed yaml",
			doc:  "name: [",
		},
		{
			name: "unknown field",
			doc:  "name: a\nfoo: 1\n",
		},
		{
			name: "missing name",
			doc:  "graph: {render_distance: 2}\n",
		},
		{
			name: "invalid graph config",
			doc:  "name: a\ngraph: {min_section_y: 2, max_section_y: 1}\n",
		},
		{
			name: "five planes",
			doc:  "name: a\nfrustum:\n  planes: [[0, 0, 0, 1], [0, 0, 0, 1], [0, 0, 0, 1], [0, 0, 0, 1], [0, 0, 0, 1]]\n",
		},
		{
			name: "unknown direction",
			doc:  "name: a\nsections:\n  - at: {x: 0, y: 0, z: 0}\n    opaque: [up]\n",
		},
		{
			name: "unknown flag",
			doc:  "name: a\nsections:\n  - at: {x: 0, y: 0, z: 0}\n    flags: [shiny]\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(test.doc))
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeScenarioInvalid))
		})
	}
}

func TestBuildOutOfBounds(t *testing.T) {
	scenarios, err := Load(strings.NewReader(`
name: out of bounds
graph:
  render_distance: 1
sections:
  - at: {x: 5, y: 0, z: 0}
`))
	require.NoError(t, err)

	_, _, err = scenarios[0].Build()
	require.True(t, errors.IsType(err, ErrTypeScenarioInvalid))

	_, err = scenarios[0].Run()
	require.Error(t, err)
}

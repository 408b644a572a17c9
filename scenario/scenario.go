// Package scenario describes graph searches and their expected outcome in
// YAML documents.
package scenario

import (
	"bytes"
	"embed"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

const ErrTypeScenarioInvalid = "scenario_invalid"

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Scenario is a graph, a camera and what the camera is expected to see.
type Scenario struct {
	Name             string               `yaml:"name"`
	Graph            graph.Config         `yaml:"graph"`
	Center           Center               `yaml:"center"`
	Sections         []Section            `yaml:"sections"`
	Removed          []graph.SectionCoord `yaml:"removed"`
	Recenter         *Center              `yaml:"recenter"`
	Camera           [3]float64           `yaml:"camera"`
	Frustum          Frustum              `yaml:"frustum"`
	SearchDistance   float32              `yaml:"search_distance"`
	OcclusionCulling bool                 `yaml:"occlusion_culling"`
	SkipRejected     bool                 `yaml:"skip_rejected"`
	Expect           Expectation          `yaml:"expect"`
}

// Center is the horizontal center of the graph.
type Center struct {
	X int32 `yaml:"x"`
	Z int32 `yaml:"z"`
}

// Section is a section of the graph. Without opaque faces or connections, it
// is transparent.
type Section struct {
	At          graph.SectionCoord   `yaml:"at"`
	Opaque      []graph.Direction    `yaml:"opaque"`
	Connections [][2]graph.Direction `yaml:"connections"`
	Flags       []string             `yaml:"flags"`
}

// Frustum holds six (a, b, c, d) planes. Without planes, the frustum accepts
// everything.
type Frustum struct {
	Planes [][4]float32 `yaml:"planes"`
}

// Expectation is the expected outcome of the search of a scenario.
type Expectation struct {
	Visible  []graph.SectionCoord `yaml:"visible"`
	Hidden   []graph.SectionCoord `yaml:"hidden"`
	Count    *int                 `yaml:"count"`
	Rejected *int                 `yaml:"rejected"`
	Receipt  string               `yaml:"receipt"`
}

var flagNames = map[string]graph.SectionFlags{
	"block_geometry":   graph.HasBlockGeometry,
	"block_entities":   graph.HasBlockEntities,
	"animated_sprites": graph.HasAnimatedSprites,
}

// Visibility returns the visibility data of the section.
func (s Section) Visibility() graph.VisibilityData {
	if len(s.Connections) == 0 {
		return graph.OpaqueFaces(graph.DirectionSetOf(s.Opaque...))
	}

	v := graph.Opaque
	for _, c := range s.Connections {
		v = v.Connect(c[0], c[1])
	}
	return v
}

// SectionFlags returns the flags of the section.
func (s Section) SectionFlags() (graph.SectionFlags, error) {
	var flags graph.SectionFlags
	for _, name := range s.Flags {
		f, ok := flagNames[strings.ToLower(name)]
		if !ok {
			return 0, errors.New("unknown section flag").
				WithType(ErrTypeScenarioInvalid).
				WithTag("flag", name).
				WithTag("section", s.At)
		}
		flags |= f
	}
	return flags, nil
}

// Validate returns an error when the scenario cannot be built.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario without name").
			WithType(ErrTypeScenarioInvalid)
	}

	if err := s.Graph.Validate(); err != nil {
		return errors.New("invalid graph config").
			WithType(ErrTypeScenarioInvalid).
			WithTag("scenario", s.Name).
			Wrap(err)
	}

	if n := len(s.Frustum.Planes); n != 0 && n != 6 {
		return errors.New("frustum must have six planes").
			WithType(ErrTypeScenarioInvalid).
			WithTag("scenario", s.Name).
			WithTag("planes", n)
	}

	if s.SearchDistance < 0 {
		return errors.New("negative search distance").
			WithType(ErrTypeScenarioInvalid).
			WithTag("scenario", s.Name)
	}

	for _, section := range s.Sections {
		if _, err := section.SectionFlags(); err != nil {
			return err
		}
	}

	return nil
}

// BuildFrustum returns the frustum of the scenario camera.
func (s Scenario) BuildFrustum() graph.Frustum {
	camera := mgl64.Vec3(s.Camera)
	if len(s.Frustum.Planes) == 0 {
		return graph.SphereFrustum(camera)
	}

	var planes [6]mgl32.Vec4
	for i, p := range s.Frustum.Planes {
		planes[i] = mgl32.Vec4(p)
	}
	return graph.NewFrustum(planes, camera)
}

// Build creates the graph of the scenario and the frustum of its camera.
func (s Scenario) Build() (*graph.Graph, graph.Frustum, error) {
	g, _, err := s.build()
	if err != nil {
		return nil, graph.Frustum{}, err
	}
	return g, s.BuildFrustum(), nil
}

func (s Scenario) build() (*graph.Graph, int, error) {
	if err := s.Validate(); err != nil {
		return nil, 0, err
	}

	g, err := graph.New(s.Graph)
	if err != nil {
		return nil, 0, err
	}

	rejected, err := s.populate(g)
	if err != nil {
		g.Close()
		return nil, 0, errors.New("building scenario graph failed").
			WithType(ErrTypeScenarioInvalid).
			WithTag("scenario", s.Name).
			Wrap(err)
	}

	return g, rejected, nil
}

// populate adds the sections of the scenario to g and returns the number of
// out of bounds sections that were skipped.
func (s Scenario) populate(g *graph.Graph) (int, error) {
	if err := g.SetCenter(s.Center.X, s.Center.Z); err != nil {
		return 0, err
	}

	rejected := 0
	for _, section := range s.Sections {
		flags, err := section.SectionFlags()
		if err != nil {
			return 0, err
		}

		c := section.At
		err = g.SetSection(c.X, c.Y, c.Z, section.Visibility(), flags)
		if s.SkipRejected && errors.IsType(err, graph.ErrTypeOutOfBounds) {
			rejected++
			continue
		}
		if err != nil {
			return 0, err
		}
	}

	for _, c := range s.Removed {
		if err := g.RemoveSection(c.X, c.Y, c.Z); err != nil {
			return 0, err
		}
	}

	if s.Recenter != nil {
		if err := g.SetCenter(s.Recenter.X, s.Recenter.Z); err != nil {
			return 0, err
		}
	}

	return rejected, nil
}

// Load reads the scenarios of a stream of YAML documents.
func Load(r io.Reader) ([]Scenario, error) {
	var scenarios []Scenario

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	for {
		var s Scenario
		err := dec.Decode(&s)
		if err == io.EOF {
			return scenarios, nil
		}
		if err != nil {
			return nil, errors.New("decoding scenario failed").
				WithType(ErrTypeScenarioInvalid).
				WithTag("index", len(scenarios)).
				Wrap(err)
		}

		if err := s.Validate(); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
}

// LoadFile reads the scenarios of a YAML file.
func LoadFile(filename string) ([]Scenario, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.New("reading scenario file failed").
			WithTag("filename", filename).
			Wrap(err)
	}
	return Load(bytes.NewReader(b))
}

// Builtin returns the scenarios shipped with the package.
func Builtin() ([]Scenario, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}

	var scenarios []Scenario
	for _, e := range entries {
		b, err := builtinFS.ReadFile(path.Join("builtin", e.Name()))
		if err != nil {
			return nil, err
		}

		s, err := Load(bytes.NewReader(b))
		if err != nil {
			return nil, errors.New("loading builtin scenario failed").
				WithTag("filename", e.Name()).
				Wrap(err)
		}
		scenarios = append(scenarios, s...)
	}
	return scenarios, nil
}

package smoketest

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/featureflag"
	"github.com/aukilabs/voxcull/graph"
	"github.com/aukilabs/voxcull/models"
	"github.com/aukilabs/voxcull/render"
	"github.com/go-gl/mathgl/mgl64"
)

// RenderReport is the outcome of the phase where search results are decoded
// into render sections.
type RenderReport struct {
	Occluded      int           `json:"occluded"`
	Unculled      int           `json:"unculled"`
	Renderable    int           `json:"renderable"`
	StampedFrames bool          `json:"stamped_frames"`
	Duration      time.Duration `json:"duration"`
}

// runRenderPhase builds a camera section, an opaque wall and a section behind
// the wall, then checks what an occlusion culler visits with and without
// culling.
func runRenderPhase(opts Options) (RenderReport, error) {
	start := time.Now()
	report := RenderReport{StampedFrames: !opts.FeatureFlags.IsSet(featureflag.FlagDisableFrameStamping)}

	store := models.NewSectionStore("smoke_test")
	culler, err := render.NewOcclusionCuller(opts.Engine, graph.Config{
		RenderDistance: 4,
		MinSectionY:    -1,
		MaxSectionY:    1,
	}, store)
	if err != nil {
		return report, errors.New("creating render phase culler failed").Wrap(err)
	}
	defer culler.Close()
	culler.Decoder.StampFrames = report.StampedFrames

	camera := models.NewRenderSection(graph.SectionCoord{}, 0)
	wall := models.NewRenderSection(graph.SectionCoord{X: 1}, graph.HasBlockGeometry)
	behind := models.NewRenderSection(graph.SectionCoord{X: 2}, graph.HasBlockGeometry)

	for _, s := range []struct {
		section    *models.RenderSection
		visibility graph.VisibilityData
	}{
		{section: camera, visibility: graph.Transparent},
		{section: wall, visibility: graph.Opaque},
		{section: behind, visibility: graph.Transparent},
	} {
		if err := culler.SetSection(s.section, s.visibility); err != nil {
			return report, errors.New("setting render section failed").
				WithTag("section", s.section.Coord).
				Wrap(err)
		}
	}

	viewport := graph.SphereFrustum(mgl64.Vec3{8, 8, 8})
	noop := func(*models.RenderSection) {}

	report.Occluded, err = culler.FindVisible(noop, viewport, 256, true, 1)
	if err != nil {
		return report, err
	}
	if report.Occluded != 2 || behind.IsVisibleIn(1) {
		return report, errors.New("occluded section visited").
			WithType(ErrTypeCheckFailed).
			WithTag("visited", report.Occluded)
	}

	report.Unculled, err = culler.FindVisible(noop, viewport, 256, false, 2)
	if err != nil {
		return report, err
	}
	if report.Unculled != store.Len() {
		return report, errors.New("unculled search missed render sections").
			WithType(ErrTypeCheckFailed).
			WithTag("visited", report.Unculled).
			WithTag("sections", store.Len())
	}

	stamped := behind.IsVisibleIn(2)
	if stamped != report.StampedFrames {
		return report, errors.New("unexpected frame stamp").
			WithType(ErrTypeCheckFailed).
			WithTag("last_visible_frame", behind.LastVisibleFrame()).
			WithTag("stamp_frames", report.StampedFrames)
	}

	// The camera section holds nothing to draw.
	culler.Decoder.Flags = graph.AllSectionFlags
	report.Renderable, err = culler.FindVisible(noop, viewport, 256, false, 3)
	if err != nil {
		return report, err
	}
	if report.Renderable != 2 || camera.IsVisibleIn(3) {
		return report, errors.New("section without flags visited as renderable").
			WithType(ErrTypeCheckFailed).
			WithTag("visited", report.Renderable)
	}

	report.Duration = time.Since(start)
	return report, nil
}

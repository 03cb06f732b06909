package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/perception-eval/internal/fsutil"
	"github.com/banshee-data/perception-eval/internal/perception/manager"
	"github.com/banshee-data/perception-eval/internal/perception/matching"
	"github.com/banshee-data/perception-eval/internal/perception/object"
	"github.com/banshee-data/perception-eval/internal/testutil"
)

// sampleReport has a matched car in frame 0, a missed pedestrian in frame 1
// and no bus ground truth at all.
func sampleReport(t *testing.T) *manager.Report {
	t.Helper()
	cfg := testutil.CenterDistanceConfig(object.LabelCar, object.LabelPedestrian, object.LabelBus)
	cfg.Metrics.Thresholds[matching.ModeIoU3D] = []matching.Threshold{matching.Uniform(0.5)}
	return testutil.Evaluate(t, cfg, testutil.TwoFrames())
}

func TestNewDocument(t *testing.T) {
	r := sampleReport(t)
	doc := NewDocument(r, Options{RunID: "run-1", Scenario: "urban", Curves: true, Frames: true})

	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 2, doc.NumFrames)
	assert.Equal(t, "continuous", doc.Interpolation)
	assert.True(t, doc.Verdict.Passed)
	require.Len(t, doc.Modes, 2)
	require.Len(t, doc.Frames, 2)
	assert.True(t, doc.Frames[0].Passed)
	assert.Equal(t, 1, doc.Frames[1].FN)

	cd := doc.Modes[0]
	assert.Equal(t, "center_distance", cd.Mode)
	require.NotNil(t, cd.MAP)
	assert.InDelta(t, 0.5, *cd.MAP, 1e-9)
	assert.Equal(t, 2, cd.NumValid)

	require.Len(t, cd.Labels, 3)
	assert.NotEmpty(t, cd.Labels[0].Curve)
	bus := cd.Labels[2]
	assert.Equal(t, "Bus", bus.Label)
	assert.False(t, bus.Valid)
	assert.Nil(t, bus.AP)
	assert.Nil(t, bus.Recall)

	// NaN must never reach the encoder.
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ap":null`)

	lean := NewDocument(r, Options{})
	assert.Empty(t, lean.Frames)
	assert.Empty(t, lean.Modes[0].Labels[0].Curve)
}

func TestWritePlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	files, err := WritePlots(fsutil.OSFileSystem{}, dir, sampleReport(t))
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, filepath.Join(dir, "pr_center_distance_1.png"), files[0])
	assert.Equal(t, filepath.Join(dir, "frame_tp_rate.png"), files[2])
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), f)
	}
}

func TestWriteArtifacts(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	dir := filepath.Join("out", "run-1")
	files, err := WriteArtifacts(mem, dir, sampleReport(t), ArtifactOptions{RunID: "run-1", Scenario: "urban", Plots: true})
	require.NoError(t, err)
	assert.Len(t, files, 5)
	assert.ElementsMatch(t, files, mem.Files())

	data, err := mem.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Len(t, doc.Frames, 2)

	png, err := mem.ReadFile(filepath.Join(dir, "pr_iou_3d_0.5.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	mem = fsutil.NewMemoryFileSystem()
	files, err = WriteArtifacts(mem, "bare", sampleReport(t), ArtifactOptions{})
	require.NoError(t, err)
	assert.Len(t, files, 2)
	html, err := mem.ReadFile(filepath.Join("bare", HTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Perception evaluation")
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, sampleReport(t), "urban run", "/assets/"))

	html := buf.String()
	assert.Contains(t, html, "urban run")
	assert.Contains(t, html, "center_distance@1")
	assert.Contains(t, html, "Frame verdicts")
	assert.Contains(t, html, "/assets/echarts.min.js")
	assert.NotContains(t, html, "NaN")
}

func TestWriteSummary(t *testing.T) {
	r := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r, false))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "PASS 1/2 frames passed (50.0%, 50.0% required)"), out)
	assert.Contains(t, out, "center_distance@1  mAP 0.500")
	assert.Contains(t, out, "n/a*")
	assert.NotContains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, r, true))
	assert.Contains(t, buf.String(), "\x1b[")

	r.Verdict.Passed = false
	buf.Reset()
	require.NoError(t, WriteSummary(&buf, r, false))
	assert.True(t, strings.HasPrefix(buf.String(), "FAIL"))
}

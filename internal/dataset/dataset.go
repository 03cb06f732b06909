// Package dataset loads recorded object lists and pairs estimated frames with
// the ground truth nearest in time.
//
// Files are JSON documents of the form
//
//	{"frames": [{"timestamp": 1533151603547590, "objects": [ ... ]}]}
//
// where timestamps are microseconds since the Unix epoch, as in nuScenes.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/perception-eval/internal/perception"
	"github.com/banshee-data/perception-eval/internal/perception/object"
)

// MatchTolerance is the largest timestamp gap, exclusive, at which a ground
// truth frame is still considered the counterpart of an estimated one.
const MatchTolerance = 75 * time.Millisecond

// maxFileSize caps a single frame file.
const maxFileSize = 256 * 1024 * 1024

// ObjectRecord is the on-disk form of one object. Orientation, when present,
// is a [w, x, y, z] quaternion and takes precedence over Yaw.
type ObjectRecord struct {
	Position    [3]float64  `json:"position"`
	Size        [3]float64  `json:"size"` // length, width, height
	Yaw         float64     `json:"yaw,omitempty"`
	Orientation *[4]float64 `json:"orientation,omitempty"`
	Velocity    *[3]float64 `json:"velocity,omitempty"`
	Confidence  *float64    `json:"confidence,omitempty"`
	Label       string      `json:"label"`
	NumPoints   *int        `json:"num_points,omitempty"`
	UUID        string      `json:"uuid,omitempty"`
}

// FrameRecord is the on-disk form of one frame.
type FrameRecord struct {
	Timestamp int64          `json:"timestamp"`
	Objects   []ObjectRecord `json:"objects"`
}

type fileRecord struct {
	Frames []FrameRecord `json:"frames"`
}

// FrameObjects is the object list observed at one timestamp.
type FrameObjects struct {
	Timestamp time.Time
	Objects   []object.DynamicObject
}

func (f FrameObjects) String() string {
	return fmt.Sprintf("timestamp: %s, num objects: %d", f.Timestamp.Format(time.RFC3339Nano), len(f.Objects))
}

// Load decodes a frame file. Objects are placed in frameID; a missing
// confidence defaults to 1 and a missing point count to unknown. Labels
// outside the closed set become object.LabelUnknown. Frames are returned
// sorted by timestamp.
func Load(r io.Reader, frameID object.FrameID) ([]FrameObjects, error) {
	var rec fileRecord
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode frame file: %w", err)
	}

	out := make([]FrameObjects, 0, len(rec.Frames))
	for i, fr := range rec.Frames {
		ts := time.UnixMicro(fr.Timestamp).UTC()
		objs := make([]object.DynamicObject, 0, len(fr.Objects))
		for _, or := range fr.Objects {
			o := or.toObject(ts, frameID)
			if err := o.Validate(i); err != nil {
				return nil, err
			}
			objs = append(objs, o)
		}
		out = append(out, FrameObjects{Timestamp: ts, Objects: objs})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Timestamp.Before(out[b].Timestamp) })
	return out, nil
}

// LoadFS opens name in fsys and decodes it with Load.
func LoadFS(fsys fs.FS, name string, frameID object.FrameID) ([]FrameObjects, error) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to stat frame file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("frame file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	defer f.Close()
	frames, err := Load(f, frameID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return frames, nil
}

func (r ObjectRecord) toObject(ts time.Time, frameID object.FrameID) object.DynamicObject {
	label, err := object.ParseLabel(r.Label)
	if err != nil {
		label = object.LabelUnknown
	}
	o := object.DynamicObject{
		Timestamp:  ts,
		FrameID:    frameID,
		Position:   r3.Vec{X: r.Position[0], Y: r.Position[1], Z: r.Position[2]},
		Length:     r.Size[0],
		Width:      r.Size[1],
		Height:     r.Size[2],
		Yaw:        r.Yaw,
		Confidence: 1,
		Label:      label,
		PointCount: object.UnknownPointCount,
		UUID:       r.UUID,
	}
	if r.Orientation != nil {
		o.SetOrientation(*r.Orientation)
	}
	if r.Velocity != nil {
		o.Velocity = &r3.Vec{X: r.Velocity[0], Y: r.Velocity[1], Z: r.Velocity[2]}
	}
	if r.Confidence != nil {
		o.Confidence = *r.Confidence
	}
	if r.NumPoints != nil {
		o.PointCount = *r.NumPoints
	}
	return o
}

// NearestFrame returns the frame whose timestamp is closest to ts, provided
// the gap is below MatchTolerance. On equal gaps the earlier frame wins.
func NearestFrame(frames []FrameObjects, ts time.Time) (FrameObjects, bool) {
	best, bestGap := -1, time.Duration(0)
	for i, f := range frames {
		gap := f.Timestamp.Sub(ts)
		if gap < 0 {
			gap = -gap
		}
		if best < 0 || gap < bestGap {
			best, bestGap = i, gap
		}
	}
	if best < 0 || bestGap >= MatchTolerance {
		return FrameObjects{}, false
	}
	return frames[best], true
}

// Pair builds evaluation frames by matching every estimated frame with its
// nearest ground truth. Estimated frames without a counterpart are skipped
// and their timestamps returned. Frame indices are dense, in estimated
// order.
func Pair(estimated, groundTruth []FrameObjects, frameID object.FrameID) (frames []object.Frame, unmatched []time.Time) {
	for _, est := range estimated {
		gt, ok := NearestFrame(groundTruth, est.Timestamp)
		if !ok {
			unmatched = append(unmatched, est.Timestamp)
			continue
		}
		frames = append(frames, object.Frame{
			Index:       len(frames),
			ID:          frameID,
			Timestamp:   est.Timestamp,
			Estimated:   est.Objects,
			GroundTruth: gt.Objects,
		})
	}
	return frames, unmatched
}

// Write encodes frames in the format read by Load. Yaw is written, never a
// quaternion.
func Write(w io.Writer, frames []FrameObjects) error {
	rec := fileRecord{Frames: make([]FrameRecord, 0, len(frames))}
	for _, f := range frames {
		fr := FrameRecord{Timestamp: f.Timestamp.UnixMicro(), Objects: make([]ObjectRecord, 0, len(f.Objects))}
		for _, o := range f.Objects {
			conf := o.Confidence
			or := ObjectRecord{
				Position:   [3]float64{o.Position.X, o.Position.Y, o.Position.Z},
				Size:       [3]float64{o.Length, o.Width, o.Height},
				Yaw:        o.Yaw,
				Confidence: &conf,
				Label:      string(o.Label),
				UUID:       o.UUID,
			}
			if o.HasPointCount() {
				n := o.PointCount
				or.NumPoints = &n
			}
			if o.Velocity != nil {
				or.Velocity = &[3]float64{o.Velocity.X, o.Velocity.Y, o.Velocity.Z}
			}
			fr.Objects = append(fr.Objects, or)
		}
		rec.Frames = append(rec.Frames, fr)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode frame file: %w", err)
	}
	return nil
}

// errNoFrames is returned by callers that need at least one pair.
var errNoFrames = perception.NewConfigError("datasets", "", nil, "no estimated frame has ground truth within tolerance")

// PairFS loads both files from fsys and pairs them. It fails when no frame
// could be paired.
func PairFS(fsys fs.FS, estimatedName, groundTruthName string, frameID object.FrameID) ([]object.Frame, []time.Time, error) {
	gt, err := LoadFS(fsys, groundTruthName, frameID)
	if err != nil {
		return nil, nil, err
	}
	est, err := LoadFS(fsys, estimatedName, frameID)
	if err != nil {
		return nil, nil, err
	}
	frames, unmatched := Pair(est, gt, frameID)
	if len(frames) == 0 {
		return nil, unmatched, errNoFrames
	}
	return frames, unmatched, nil
}

// PairFiles is PairFS for two paths on the local file system, which may
// live in different directories.
func PairFiles(estimatedPath, groundTruthPath string, frameID object.FrameID) ([]object.Frame, []time.Time, error) {
	gt, err := LoadFS(os.DirFS(filepath.Dir(groundTruthPath)), filepath.Base(groundTruthPath), frameID)
	if err != nil {
		return nil, nil, err
	}
	est, err := LoadFS(os.DirFS(filepath.Dir(estimatedPath)), filepath.Base(estimatedPath), frameID)
	if err != nil {
		return nil, nil, err
	}
	frames, unmatched := Pair(est, gt, frameID)
	if len(frames) == 0 {
		return nil, unmatched, errNoFrames
	}
	return frames, unmatched, nil
}

// Package perception evaluates 3D object-perception output against recorded
// ground truth.
//
// The evaluation is split into layers, leaves first:
//
//   - geometry: oriented-box distance and overlap primitives.
//   - object: DynamicObject, Label, Frame and other shared data types.
//   - matching: scoring strategies (centre distance, plane distance, BEV IoU,
//     3D IoU) with an explicit polarity tag.
//   - filter: eligibility of objects before matching.
//   - result: the per-frame greedy matcher and scenario aggregation.
//   - metrics: precision-recall curves, AP and APH.
//   - manager: orchestration of a full scenario and the pass/fail verdict.
//
// Dependency rule: a layer may only depend on the layers listed before it.
// This package holds the error kinds shared by every layer; nothing in the
// perception tree logs on its own.
package perception

package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FloatList is a per-label list that may be written as a single scalar,
// which then applies to every target label.
type FloatList []float64

// UnmarshalYAML accepts `1.0` or `[1.0, 2.0]`.
func (f *FloatList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*f = FloatList{v}
		return nil
	case yaml.SequenceNode:
		var vs []float64
		if err := node.Decode(&vs); err != nil {
			return err
		}
		*f = vs
		return nil
	}
	return fmt.Errorf("line %d: expected a number or a list of numbers", node.Line)
}

// IntList is the integer form of FloatList.
type IntList []int

// UnmarshalYAML accepts `100` or `[100, 50]`.
func (l *IntList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v int
		if err := node.Decode(&v); err != nil {
			return err
		}
		*l = IntList{v}
		return nil
	case yaml.SequenceNode:
		var vs []int
		if err := node.Decode(&vs); err != nil {
			return err
		}
		*l = vs
		return nil
	}
	return fmt.Errorf("line %d: expected an integer or a list of integers", node.Line)
}

// ThresholdSets holds one or more threshold sets for a matching mode:
//
//	1.0                 one set, broadcast to every label
//	[1.0, 2.0, 0.5]     one set, one value per label
//	[[1.0], [2.0]]      two sets
type ThresholdSets [][]float64

// UnmarshalYAML accepts the three shapes above.
func (t *ThresholdSets) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*t = ThresholdSets{{v}}
		return nil
	case yaml.SequenceNode:
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			var sets [][]float64
			if err := node.Decode(&sets); err != nil {
				return err
			}
			*t = sets
			return nil
		}
		var vs []float64
		if err := node.Decode(&vs); err != nil {
			return err
		}
		*t = ThresholdSets{vs}
		return nil
	}
	return fmt.Errorf("line %d: expected a threshold, a list, or a list of lists", node.Line)
}

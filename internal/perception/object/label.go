// Package object holds the data types shared by every evaluation layer: the
// closed label set, coordinate frames, DynamicObject and Frame.
package object

import (
	"fmt"
	"strings"
)

// Label is the semantic class of an object.
type Label string

const (
	LabelUnknown    Label = "Unknown"
	LabelCar        Label = "Car"
	LabelTruck      Label = "Truck"
	LabelBus        Label = "Bus"
	LabelBicycle    Label = "Bicycle"
	LabelMotorbike  Label = "Motorbike"
	LabelPedestrian Label = "Pedestrian"
	LabelAnimal     Label = "Animal"
)

// AllLabels lists the closed label set in canonical order.
var AllLabels = []Label{
	LabelUnknown,
	LabelCar,
	LabelTruck,
	LabelBus,
	LabelBicycle,
	LabelMotorbike,
	LabelPedestrian,
	LabelAnimal,
}

// labelAliases maps lower-cased dataset category names onto the label set.
var labelAliases = map[string]Label{
	"unknown":    LabelUnknown,
	"car":        LabelCar,
	"truck":      LabelTruck,
	"bus":        LabelBus,
	"bicycle":    LabelBicycle,
	"motorbike":  LabelMotorbike,
	"pedestrian": LabelPedestrian,
	"animal":     LabelAnimal,

	"vehicle.car":                          LabelCar,
	"vehicle.emergency.police":             LabelCar,
	"vehicle.truck":                        LabelTruck,
	"vehicle.trailer":                      LabelTruck,
	"vehicle.construction":                 LabelTruck,
	"vehicle.emergency.ambulance":          LabelTruck,
	"vehicle.bus.bendy":                    LabelBus,
	"vehicle.bus.rigid":                    LabelBus,
	"vehicle.bicycle":                      LabelBicycle,
	"vehicle.motorcycle":                   LabelMotorbike,
	"motorcycle":                           LabelMotorbike,
	"human.pedestrian.adult":               LabelPedestrian,
	"human.pedestrian.child":               LabelPedestrian,
	"human.pedestrian.construction_worker": LabelPedestrian,
	"human.pedestrian.police_officer":      LabelPedestrian,
	"human.pedestrian.stroller":            LabelPedestrian,
	"human.pedestrian.wheelchair":          LabelPedestrian,
	"human.pedestrian.personal_mobility":   LabelPedestrian,
	"animal.dog":                           LabelAnimal,
	"movable_object.barrier":               LabelUnknown,
}

// ParseLabel resolves a label name or a known dataset alias,
// case-insensitively.
func ParseLabel(s string) (Label, error) {
	if l, ok := labelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("unknown label %q", s)
}

// Valid reports whether l is a member of the closed label set.
func (l Label) Valid() bool {
	for _, v := range AllLabels {
		if v == l {
			return true
		}
	}
	return false
}

func (l Label) String() string { return string(l) }

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseLabel, so
// YAML and JSON inputs may carry aliases.
func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLabels parses a list of names, failing on the first unknown one.
func ParseLabels(names []string) ([]Label, error) {
	out := make([]Label, 0, len(names))
	for _, n := range names {
		l, err := ParseLabel(n)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

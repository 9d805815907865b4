package domain

import dErrors "lifebank/pkg/domain-errors"

// BloodType is one of the 8 ABO/Rh groups.
// Invariant: only the 8 defined values are valid; construct via ParseBloodType
// at trust boundaries.
type BloodType string

const (
	OPos  BloodType = "O+"
	ONeg  BloodType = "O-"
	APos  BloodType = "A+"
	ANeg  BloodType = "A-"
	BPos  BloodType = "B+"
	BNeg  BloodType = "B-"
	ABPos BloodType = "AB+"
	ABNeg BloodType = "AB-"
)

// BloodTypes lists all valid groups in a stable order, used by summary views.
var BloodTypes = []BloodType{OPos, ONeg, APos, ANeg, BPos, BNeg, ABPos, ABNeg}

var validBloodTypes = map[BloodType]bool{
	OPos: true, ONeg: true, APos: true, ANeg: true,
	BPos: true, BNeg: true, ABPos: true, ABNeg: true,
}

// ParseBloodType constructs a BloodType from external input.
func ParseBloodType(s string) (BloodType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "blood type cannot be empty")
	}
	t := BloodType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid blood type: "+s)
	}
	return t, nil
}

func (t BloodType) IsValid() bool { return validBloodTypes[t] }

func (t BloodType) String() string { return string(t) }

// Component is the physical blood product a unit holds. Component does not
// change ABO/Rh rules but restricts which units can satisfy a request: a
// plasma request is never satisfied by a red-cell unit.
type Component string

const (
	WholeBlood Component = "whole_blood"
	Plasma     Component = "plasma"
	Platelets  Component = "platelets"
	RedCells   Component = "red_cells"
)

// Components lists all valid components in a stable order.
var Components = []Component{WholeBlood, Plasma, Platelets, RedCells}

var validComponents = map[Component]bool{
	WholeBlood: true, Plasma: true, Platelets: true, RedCells: true,
}

// ParseComponent constructs a Component from external input.
func ParseComponent(s string) (Component, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "component cannot be empty")
	}
	c := Component(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid component: "+s)
	}
	return c, nil
}

func (c Component) IsValid() bool { return validComponents[c] }

func (c Component) String() string { return string(c) }

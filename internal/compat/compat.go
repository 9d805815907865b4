// Package compat encodes ABO/Rh donor compatibility.
//
// The resolver is a pure lookup: no state, total over the 8 defined blood
// types. Component type never changes these rules; it only restricts which
// physical units qualify for a request, which the inventory query enforces.
package compat

import (
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// donorsByRecipient lists acceptable donor types per recipient type, ordered
// closest-match-first: the exact type leads, O− comes last so the universal
// donor pool is drawn down only when nearer matches are exhausted.
var donorsByRecipient = map[id.BloodType][]id.BloodType{
	id.ONeg:  {id.ONeg},
	id.OPos:  {id.OPos, id.ONeg},
	id.ANeg:  {id.ANeg, id.ONeg},
	id.APos:  {id.APos, id.ANeg, id.OPos, id.ONeg},
	id.BNeg:  {id.BNeg, id.ONeg},
	id.BPos:  {id.BPos, id.BNeg, id.OPos, id.ONeg},
	id.ABNeg: {id.ABNeg, id.ANeg, id.BNeg, id.ONeg},
	id.ABPos: {id.ABPos, id.ABNeg, id.APos, id.ANeg, id.BPos, id.BNeg, id.OPos, id.ONeg},
}

// CompatibleDonorTypes returns the donor blood types whose units may be
// transfused into a recipient of the requested type, ordered
// closest-match-first. Fails on anything outside the 8 defined types.
func CompatibleDonorTypes(requested id.BloodType) ([]id.BloodType, error) {
	donors, ok := donorsByRecipient[requested]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid blood type: "+requested.String())
	}
	out := make([]id.BloodType, len(donors))
	copy(out, donors)
	return out, nil
}

// CanDonateTo reports whether donor blood is transfusable into recipient.
func CanDonateTo(donor, recipient id.BloodType) bool {
	for _, d := range donorsByRecipient[recipient] {
		if d == donor {
			return true
		}
	}
	return false
}

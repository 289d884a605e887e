// Package decay converts between signal counts, half-lives and effective
// Majorana masses for a double-beta decay isotope loaded in scintillator.
package decay

import (
	"fmt"
	"math"

	"echidna/domain/core"
)

const (
	// Avogadro is the number of atoms per mole
	Avogadro = 6.02214129e23
	// ElectronMass in eV
	ElectronMass = 0.510998910e6
)

// DBIsotope describes a double-beta isotope dissolved in a spherical
// scintillator volume. Lengths are in mm, densities in kg/mm^3 and atomic
// weights in g/mol. A zero PhaseSpace or MatrixElement means unknown.
type DBIsotope struct {
	Name          string  `yaml:"name" json:"name"`
	AtmWeightIso  float64 `yaml:"atm_weight_iso" json:"atm_weight_iso"`
	AtmWeightNat  float64 `yaml:"atm_weight_nat" json:"atm_weight_nat"`
	Abundance     float64 `yaml:"abundance" json:"abundance"`
	PhaseSpace    float64 `yaml:"phase_space" json:"phase_space"`
	MatrixElement float64 `yaml:"matrix_element" json:"matrix_element"`
	Loading       float64 `yaml:"loading" json:"loading"`
	FVRadius      float64 `yaml:"fv_radius" json:"fv_radius"`
	OuterRadius   float64 `yaml:"outer_radius" json:"outer_radius"`
	ScintDensity  float64 `yaml:"scint_density" json:"scint_density"`
	ROIEfficiency float64 `yaml:"roi_efficiency" json:"roi_efficiency"`
}

// Validate checks the parameters needed to count target atoms
func (d DBIsotope) Validate() error {
	positive := map[string]float64{
		"atm_weight_nat": d.AtmWeightNat,
		"abundance":      d.Abundance,
		"loading":        d.Loading,
		"fv_radius":      d.FVRadius,
		"outer_radius":   d.OuterRadius,
		"scint_density":  d.ScintDensity,
	}
	for field, v := range positive {
		if !(v > 0) {
			return fmt.Errorf("%w: %s %s must be positive, got %g", core.ErrInvalidIsotope, d.Name, field, v)
		}
	}
	if d.FVRadius > d.OuterRadius {
		return fmt.Errorf("%w: %s fiducial radius %g beyond outer radius %g",
			core.ErrInvalidIsotope, d.Name, d.FVRadius, d.OuterRadius)
	}
	return nil
}

// TargetMass returns the mass in kg of the loaded element inside the outer radius
func (d DBIsotope) TargetMass() float64 {
	scintMass := 4.0 / 3.0 * math.Pi * math.Pow(d.OuterRadius, 3) * d.ScintDensity
	return scintMass * d.Loading
}

// NumAtoms returns the number of atoms of the isotope inside the fiducial volume
func (d DBIsotope) NumAtoms() (float64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	moles := d.TargetMass() * 1e3 / d.AtmWeightNat
	fvFraction := math.Pow(d.FVRadius/d.OuterRadius, 3)
	return moles * Avogadro * d.Abundance * fvFraction, nil
}

// CountsToHalfLife converts a number of decays seen in livetime years into a half-life
func (d DBIsotope) CountsToHalfLife(counts, livetime float64) (float64, error) {
	if !(counts > 0) || !(livetime > 0) {
		return 0, fmt.Errorf("%w: counts %g and livetime %g must be positive", core.ErrInvalidIsotope, counts, livetime)
	}
	n, err := d.NumAtoms()
	if err != nil {
		return 0, err
	}
	return math.Ln2 * n * livetime / counts, nil
}

// HalfLifeToCounts returns the decays expected in livetime years for a half-life
func (d DBIsotope) HalfLifeToCounts(halfLife, livetime float64) (float64, error) {
	if !(halfLife > 0) || livetime < 0 {
		return 0, fmt.Errorf("%w: half-life %g, livetime %g", core.ErrInvalidIsotope, halfLife, livetime)
	}
	n, err := d.NumAtoms()
	if err != nil {
		return 0, err
	}
	return math.Ln2 * n * livetime / halfLife, nil
}

// EventsToCounts corrects events inside the ROI for the ROI efficiency
func (d DBIsotope) EventsToCounts(events float64) (float64, error) {
	if !(d.ROIEfficiency > 0) {
		return 0, fmt.Errorf("%w: %s roi efficiency %g", core.ErrInvalidIsotope, d.Name, d.ROIEfficiency)
	}
	return events / d.ROIEfficiency, nil
}

// HalfLifeToEffMass returns the effective Majorana mass in eV
func (d DBIsotope) HalfLifeToEffMass(halfLife float64) (float64, error) {
	if d.PhaseSpace == 0 || d.MatrixElement == 0 {
		return 0, fmt.Errorf("%w: %s", core.ErrMissingNuclearParams, d.Name)
	}
	if !(halfLife > 0) {
		return 0, fmt.Errorf("%w: half-life %g", core.ErrInvalidIsotope, halfLife)
	}
	return ElectronMass / math.Sqrt(halfLife*d.PhaseSpace*d.MatrixElement*d.MatrixElement), nil
}

// EffMassToHalfLife is the inverse of HalfLifeToEffMass
func (d DBIsotope) EffMassToHalfLife(effMass float64) (float64, error) {
	if d.PhaseSpace == 0 || d.MatrixElement == 0 {
		return 0, fmt.Errorf("%w: %s", core.ErrMissingNuclearParams, d.Name)
	}
	if !(effMass > 0) {
		return 0, fmt.Errorf("%w: effective mass %g", core.ErrInvalidIsotope, effMass)
	}
	ratio := ElectronMass / effMass
	return ratio * ratio / (d.PhaseSpace * d.MatrixElement * d.MatrixElement), nil
}

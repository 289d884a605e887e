package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"echidna/domain/spectra"
	"echidna/ports"
)

// Q-value of Xe136 double beta decay and the electron mass, in MeV
const (
	xe136QValue  = 2.45783
	electronMass = 0.510998910
	b8Endpoint   = 15.0
)

// SpectraGeneratorConfig configures the synthetic spectra generator
type SpectraGeneratorConfig struct {
	Events     int          `json:"events"`
	Resolution float64      `json:"resolution"` // fractional energy resolution at 1 MeV
	Energy     spectra.Axis `json:"energy"`
	Radial     spectra.Axis `json:"radial"`
	Time       spectra.Axis `json:"time"`
	Seed       uint64       `json:"seed"`
}

// DefaultSpectraConfig returns a KamLAND-Zen like detector
func DefaultSpectraConfig() SpectraGeneratorConfig {
	return SpectraGeneratorConfig{
		Events:     100000,
		Resolution: 0.066,
		Energy:     spectra.Axis{Name: spectra.DimEnergy, Low: 0, High: 10, Bins: 200},
		Radial:     spectra.Axis{Name: spectra.DimRadial, Low: 0, High: 2000, Bins: 20},
		Time:       spectra.Axis{Name: spectra.DimTime, Low: 0, High: 10, Bins: 10},
		Seed:       42,
	}
}

// shape samples a true kinetic energy in MeV
type shape func(g *SpectraGenerator) float64

// doubleBeta returns the summed electron energy spectrum of a double beta
// decay with spectral index n: 5 for 2n2b, 1, 2, 3 or 7 for Majoron modes.
func doubleBeta(n float64) shape {
	q := xe136QValue / electronMass
	pdf := func(k float64) float64 {
		if k <= 0 || k >= q {
			return 0
		}
		return k * math.Pow(q-k, n) * (math.Pow(k, 4) + 10*math.Pow(k, 3) + 40*k*k + 60*k + 30)
	}
	peak := 0.0
	for i := 1; i < 1000; i++ {
		peak = math.Max(peak, pdf(q*float64(i)/1000))
	}
	peak *= 1.05

	return func(g *SpectraGenerator) float64 {
		kin := distuv.Uniform{Min: 0, Max: q, Src: g.src}
		accept := distuv.Uniform{Min: 0, Max: peak, Src: g.src}
		for {
			k := kin.Rand()
			if accept.Rand() <= pdf(k) {
				return k * electronMass
			}
		}
	}
}

// b8Solar approximates the 8B solar neutrino electron recoil spectrum by a
// falling triangle up to the endpoint.
func b8Solar(g *SpectraGenerator) float64 {
	return distuv.NewTriangle(0, b8Endpoint, 0, g.src).Rand()
}

var shapes = map[string]shape{
	"Xe136_0n2b_n1": doubleBeta(1),
	"Xe136_0n2b_n2": doubleBeta(2),
	"Xe136_0n2b_n3": doubleBeta(3),
	"Xe136_0n2b_n7": doubleBeta(7),
	"Xe136_2n2b":    doubleBeta(5),
	"B8_Solar":      b8Solar,
}

// KnownSpectra lists the names the generator can produce
func KnownSpectra() []string {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpectraGenerator produces Monte Carlo spectra for the Xe136 analysis
type SpectraGenerator struct {
	config SpectraGeneratorConfig
	src    rand.Source
	rng    *rand.Rand
}

// NewSpectraGenerator creates a new seeded generator
func NewSpectraGenerator(config SpectraGeneratorConfig) *SpectraGenerator {
	src := rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)
	return &SpectraGenerator{
		config: config,
		src:    src,
		rng:    rand.New(src),
	}
}

// GenerateEvents draws n events of the named spectrum with smeared energy,
// radius uniform in the detector volume and time uniform over the time axis.
func (g *SpectraGenerator) GenerateEvents(name string, n int) ([]ports.Event, error) {
	sample, ok := shapes[name]
	if !ok {
		return nil, fmt.Errorf("no generator for spectrum %q", name)
	}

	events := make([]ports.Event, n)
	for i := range events {
		energy := sample(g)
		if g.config.Resolution > 0 && energy > 0 {
			smear := distuv.Normal{Mu: energy, Sigma: g.config.Resolution * math.Sqrt(energy), Src: g.src}
			energy = smear.Rand()
		}
		events[i] = ports.Event{
			Energy: energy,
			Radius: g.config.Radial.High * math.Cbrt(g.rng.Float64()),
			Time:   g.config.Time.Low + (g.config.Time.High-g.config.Time.Low)*g.rng.Float64(),
			Weight: 1,
		}
	}
	return events, nil
}

// Generate fills a spectrum of the named shape. NumDecays is the number of
// generated decays, including those smeared outside the energy axis.
func (g *SpectraGenerator) Generate(name string) (*spectra.Spectra, error) {
	s, err := spectra.New(name, g.config.Energy, g.config.Radial, g.config.Time, float64(g.config.Events))
	if err != nil {
		return nil, err
	}
	events, err := g.GenerateEvents(name, g.config.Events)
	if err != nil {
		return nil, err
	}
	FillEvents(s, events)
	return s, nil
}

// FillEvents fills every event inside the spectrum range and returns how
// many fell outside.
func FillEvents(s *spectra.Spectra, events []ports.Event) (skipped int) {
	for _, ev := range events {
		if err := s.Fill(ev.Energy, ev.Radius, ev.Time, ev.Weight); err != nil {
			skipped++
		}
	}
	return skipped
}

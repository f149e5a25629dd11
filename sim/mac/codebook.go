// Package mac emulates the external MAC/codebook/channel layer the phase
// sequencer drives: associations, beacon intervals, sector sweeps, and the
// SISO/MIMO sub-phases of SU-MIMO beamforming training, all producing
// completion events on the simulator queue. SNR comes from a deterministic
// directional channel model so that a seeded run reproduces its traces
// exactly.
package mac

import (
	"fmt"

	"github.com/bft-sim/bft-sim/sim"
)

// AntennaDef describes one phased antenna array of a station's codebook.
type AntennaDef struct {
	ID            sim.AntennaID
	Sectors       uint8
	AwvsPerSector uint8
}

// Codebook enumerates the antennas, sectors, and AWVs of one station and
// owns the run-scoped registry of MIMO combination AWV identifiers.
type Codebook struct {
	antennas []AntennaDef

	// extraAwvs counts the fine-steering AWVs appended for the MIMO phase
	// when extended AWV testing is requested.
	extraAwvs uint8

	// combinations maps the opaque AWV ids handed out during MIMO
	// evaluation back to physical steering configurations. Ids are 1-based.
	combinations []sim.AntennaCombination
}

// NewCodebook builds a codebook from antenna definitions. Every antenna
// needs at least one sector and one AWV.
func NewCodebook(antennas []AntennaDef) (*Codebook, error) {
	if len(antennas) == 0 {
		return nil, fmt.Errorf("codebook needs at least one antenna")
	}
	for _, a := range antennas {
		if a.Sectors == 0 || a.AwvsPerSector == 0 {
			return nil, fmt.Errorf("antenna %d: sectors and AWVs per sector must be positive", a.ID)
		}
	}
	cb := &Codebook{antennas: append([]AntennaDef(nil), antennas...)}
	return cb, nil
}

// AntennaIDs lists the antenna identifiers in codebook order.
func (cb *Codebook) AntennaIDs() []sim.AntennaID {
	ids := make([]sim.AntennaID, 0, len(cb.antennas))
	for _, a := range cb.antennas {
		ids = append(ids, a.ID)
	}
	return ids
}

// Sectors lists the sector identifiers of one antenna (1-based), or nil if
// the antenna is unknown.
func (cb *Codebook) Sectors(ant sim.AntennaID) []sim.SectorID {
	for _, a := range cb.antennas {
		if a.ID == ant {
			out := make([]sim.SectorID, a.Sectors)
			for i := range out {
				out[i] = sim.SectorID(i + 1)
			}
			return out
		}
	}
	return nil
}

// AwvsPerSector returns the number of AWVs tested per sector, including
// any appended fine-steering AWVs.
func (cb *Codebook) AwvsPerSector(ant sim.AntennaID) uint8 {
	for _, a := range cb.antennas {
		if a.ID == ant {
			return a.AwvsPerSector + cb.extraAwvs
		}
	}
	return 0
}

// AppendExtendedAwvs appends n fine-steering AWVs to every sector,
// increasing the steering granularity for the MIMO phase. Called once per
// run when extended AWV testing is requested.
func (cb *Codebook) AppendExtendedAwvs(n uint8) {
	cb.extraAwvs += n
}

// RegisterCombination assigns the next AWV identifier to a combination
// tested in the MIMO phase and returns it. Identifiers are 1-based and
// stable for the rest of the run.
func (cb *Codebook) RegisterCombination(combo sim.AntennaCombination) uint16 {
	cb.combinations = append(cb.combinations, append(sim.AntennaCombination(nil), combo...))
	return uint16(len(cb.combinations))
}

// CombinationFromAWVID resolves a previously registered AWV identifier.
// Unknown identifiers return nil.
func (cb *Codebook) CombinationFromAWVID(id uint16) sim.AntennaCombination {
	if id == 0 || int(id) > len(cb.combinations) {
		return nil
	}
	return cb.combinations[id-1]
}

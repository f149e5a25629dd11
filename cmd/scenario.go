package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bft-sim/bft-sim/sim"
	"github.com/bft-sim/bft-sim/sim/mac"
)

// AntennaConfig describes one phased antenna array in a scenario file.
type AntennaConfig struct {
	ID            uint8 `yaml:"id"`
	Sectors       uint8 `yaml:"sectors"`
	AwvsPerSector uint8 `yaml:"awvsPerSector"`
}

// NodeConfig describes one station in a scenario file.
type NodeConfig struct {
	ID       uint32          `yaml:"id"`
	Antennas []AntennaConfig `yaml:"antennas"`
}

// ScenarioConfig is the YAML scenario description: the two stations, their
// codebooks, and the link SNR profile of the channel between them.
type ScenarioConfig struct {
	Initiator NodeConfig      `yaml:"initiator"`
	Responder NodeConfig      `yaml:"responder"`
	Profile   mac.LinkProfile `yaml:"linkProfile"`
}

// DefaultScenario is the built-in SU-MIMO 2x2 setup used when no scenario
// file is given: two stations with two 12-sector antennas each.
func DefaultScenario() *ScenarioConfig {
	antennas := []AntennaConfig{
		{ID: 1, Sectors: 12, AwvsPerSector: 4},
		{ID: 2, Sectors: 12, AwvsPerSector: 4},
	}
	return &ScenarioConfig{
		Initiator: NodeConfig{ID: 2, Antennas: antennas},
		Responder: NodeConfig{ID: 1, Antennas: antennas},
		Profile:   mac.DefaultLinkProfile(),
	}
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	cfg := DefaultScenario()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("scenario file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *ScenarioConfig) validate() error {
	if c.Initiator.ID == c.Responder.ID {
		return fmt.Errorf("initiator and responder must have distinct ids, both are %d", c.Initiator.ID)
	}
	for _, node := range []NodeConfig{c.Initiator, c.Responder} {
		if len(node.Antennas) == 0 {
			return fmt.Errorf("node %d has no antennas", node.ID)
		}
		for _, a := range node.Antennas {
			if a.Sectors == 0 || a.AwvsPerSector == 0 {
				return fmt.Errorf("node %d antenna %d: sectors and awvsPerSector must be positive", node.ID, a.ID)
			}
		}
	}
	return nil
}

// MacConfig translates the scenario into the emulated MAC configuration.
func (c *ScenarioConfig) MacConfig(numStreams int, extendedAwvs uint8) mac.Config {
	cfg := mac.DefaultConfig(sim.NodeID(c.Initiator.ID), sim.NodeID(c.Responder.ID))
	cfg.NumStreams = numStreams
	if extendedAwvs > 0 {
		cfg.ExtendedAwvCount = extendedAwvs
	}
	cfg.Profile = c.Profile
	cfg.Codebooks = map[sim.NodeID][]mac.AntennaDef{
		sim.NodeID(c.Initiator.ID): antennaDefs(c.Initiator.Antennas),
		sim.NodeID(c.Responder.ID): antennaDefs(c.Responder.Antennas),
	}
	return cfg
}

func antennaDefs(antennas []AntennaConfig) []mac.AntennaDef {
	defs := make([]mac.AntennaDef, 0, len(antennas))
	for _, a := range antennas {
		defs = append(defs, mac.AntennaDef{
			ID:            sim.AntennaID(a.ID),
			Sectors:       a.Sectors,
			AwvsPerSector: a.AwvsPerSector,
		})
	}
	return defs
}

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage is the lifecycle position of a ticket. Values are the on-ledger enum
// tags and only ever increase over a ticket's history.
type Stage uint8

const (
	StagePrestige    Stage = 0 // minted, not yet usable at the gate
	StageQR          Stage = 1 // entry-ready, the only listable stage
	StageScanned     Stage = 2 // attendance proven
	StageCollectible Stage = 3 // terminal keepsake
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{StagePrestige, StageQR, StageScanned, StageCollectible}

func (s Stage) Valid() bool { return s <= StageCollectible }

func (s Stage) String() string {
	switch s {
	case StagePrestige:
		return "Prestige"
	case StageQR:
		return "QR"
	case StageScanned:
		return "Scanned"
	case StageCollectible:
		return "Collectible"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// ParseStage accepts the names produced by String, case-insensitively.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

func (s Stage) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

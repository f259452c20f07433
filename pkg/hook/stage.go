package hook

import (
	"fmt"
	"strings"
)

// Stage is the SMTP transaction checkpoint at which a request is issued.
type Stage int

const (
	StageConnect Stage = iota
	StageEhlo
	StageAuth
	StageMail
	StageRcpt
	StageData
)

// Stages lists every stage in transaction order.
var Stages = []Stage{StageConnect, StageEhlo, StageAuth, StageMail, StageRcpt, StageData}

var stageTokens = []string{"connect", "ehlo", "auth", "mail", "rcpt", "data"}

// stageVariants is reported when decoding fails; matching is done on upper-cased input.
var stageVariants = []string{"CONNECT", "EHLO", "AUTH", "MAIL", "RCPT", "DATA"}

// ParseStage matches any casing of the six stage tokens.
func ParseStage(s string) (Stage, error) {
	upper := strings.ToUpper(s)
	for i, v := range stageVariants {
		if v == upper {
			return Stage(i), nil
		}
	}
	return 0, &DecodeError{
		Kind:     UnknownVariant,
		Type:     "Stage",
		Field:    "stage",
		Value:    s,
		Expected: stageVariants,
	}
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageTokens) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageTokens[s]
}

// MarshalText encodes the stage as its lowercase token.
func (s Stage) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stageTokens) {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(stageTokens[s]), nil
}

// UnmarshalText decodes a stage token case-insensitively.
func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}

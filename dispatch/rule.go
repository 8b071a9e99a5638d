// Package dispatch ranks ready activities by a priority-dispatching rule.
package dispatch

import (
	"fmt"
	"strings"
)

// Rule is a priority-dispatching rule. Every rule yields a key where lower is better.
type Rule int

const (
	SPT      Rule = iota // shortest processing time
	LPT                  // longest processing time
	EDD                  // earliest due date
	FIFO                 // earliest ready time
	SLACK                // least slack
	CR                   // smallest critical ratio
	ATC                  // apparent tardiness cost
	WSPT                 // weighted shortest processing time
	MWKR                 // most work remaining
	LWKR                 // least work remaining
	MOPNR                // most operations remaining
	PRIORITY             // highest task weight
	RANDOM               // seeded uniform draw
	SRO                  // slack per remaining operation
)

var ruleNames = [...]string{"SPT", "LPT", "EDD", "FIFO", "SLACK", "CR", "ATC", "WSPT",
	"MWKR", "LWKR", "MOPNR", "PRIORITY", "RANDOM", "SRO"}

// Rules lists every rule in declaration order.
func Rules() []Rule {
	rs := make([]Rule, len(ruleNames))
	for i := range rs {
		rs[i] = Rule(i)
	}
	return rs
}

func (r Rule) String() string {
	if r < 0 || int(r) >= len(ruleNames) {
		return fmt.Sprintf("Rule(%d)", int(r))
	}
	return ruleNames[r]
}

// ParseRule accepts a rule name in any case.
func ParseRule(s string) (Rule, error) {
	for i, name := range ruleNames {
		if strings.EqualFold(s, name) {
			return Rule(i), nil
		}
	}
	return 0, fmt.Errorf("unknown dispatching rule %q", s)
}

func (r Rule) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(ruleNames) {
		return nil, fmt.Errorf("unknown dispatching rule %d", int(r))
	}
	return []byte(ruleNames[r]), nil
}

func (r *Rule) UnmarshalText(text []byte) error {
	parsed, err := ParseRule(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

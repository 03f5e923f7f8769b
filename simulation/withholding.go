package simulation

import (
	"fmt"
	"sort"
)

// Trigger tells a policy why it is being consulted.
type Trigger uint8

const (
	// A competing block was accepted into the attacker's public view.
	TriggerReceived Trigger = iota
	// The attacker appended a block to its private chain.
	TriggerMined
)

// RaceState is what a withholding policy sees when it decides.
type RaceState struct {
	Trigger Trigger
	// Lead before and after the triggering block, measured as the height of
	// the private tip minus the height of the public tip.
	Lead    int
	LeadNew int
	// Withheld is the number of unpublished private blocks.
	Withheld int
	// Match is the number of withheld blocks that brings the published
	// branch level with the public tip.
	Match int
	// Racing is set while a published branch ties the public tip.
	Racing bool
}

type ActionKind uint8

const (
	Wait ActionKind = iota
	Abandon
	Publish
)

func (a ActionKind) String() string {
	switch a {
	case Wait:
		return "wait"
	case Abandon:
		return "abandon"
	case Publish:
		return "publish"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Decision is a policy's answer. Count is only used by Publish and is the
// number of withheld blocks to reveal, oldest first.
type Decision struct {
	Action ActionKind
	Count  int
}

func waitDecision() Decision                  { return Decision{Action: Wait} }
func abandonDecision() Decision               { return Decision{Action: Abandon} }
func publishDecision(n int) Decision          { return Decision{Action: Publish, Count: n} }
func publishAllDecision(s RaceState) Decision { return publishDecision(s.Withheld) }

// Policy decides when an attacker reveals withheld blocks. Strategy variants
// share the private chain bookkeeping and differ only in their policy.
type Policy func(s RaceState) Decision

// SelfishPolicy is the classic selfish mining state machine.
func SelfishPolicy() Policy {
	return func(s RaceState) Decision {
		if s.Trigger == TriggerMined {
			if s.Racing {
				return publishAllDecision(s)
			}
			return waitDecision()
		}
		switch {
		case s.Lead <= 0 || s.LeadNew < 0:
			return abandonDecision()
		case s.Lead == 1 && s.LeadNew == 0:
			// Race the honest block rather than lose the withheld one.
			return publishAllDecision(s)
		case s.Lead == 2 && s.LeadNew == 1:
			return publishAllDecision(s)
		case s.Lead > 2 && s.LeadNew == s.Lead-1:
			return publishDecision(s.Match)
		}
		return waitDecision()
	}
}

// LeadStubbornPolicy publishes on every tie: whenever the public chain gains
// a block it reveals just enough to match it and never overrides early.
func LeadStubbornPolicy() Policy {
	return func(s RaceState) Decision {
		if s.Trigger == TriggerMined {
			return waitDecision()
		}
		switch {
		case s.Lead <= 0 || s.LeadNew < 0:
			return abandonDecision()
		case s.LeadNew == s.Lead-1:
			return publishDecision(s.Match)
		}
		return waitDecision()
	}
}

// TrailStubbornPolicy never publishes early: it does not race a tie and
// keeps mining its branch while at most trail blocks behind. It reveals
// everything once its own blocks pull it ahead again.
func TrailStubbornPolicy(trail int) Policy {
	return func(s RaceState) Decision {
		if s.Trigger == TriggerMined {
			// Withheld counts the new block, so more than one means the
			// branch was trailing before it.
			if s.Racing || (s.Lead <= 0 && s.LeadNew > 0 && s.Withheld > 1) {
				return publishAllDecision(s)
			}
			return waitDecision()
		}
		switch {
		case s.Withheld == 0 && s.Lead <= 0:
			return abandonDecision()
		case s.LeadNew < -trail:
			return abandonDecision()
		case s.Lead == 2 && s.LeadNew == 1:
			return publishAllDecision(s)
		case s.Lead > 2 && s.LeadNew == s.Lead-1:
			return publishDecision(s.Match)
		}
		return waitDecision()
	}
}

// Policies maps preset names to policy constructors. The trail argument is
// only used by trail-stubborn.
var Policies = map[string]func(trail int) Policy{
	"selfish":        func(int) Policy { return SelfishPolicy() },
	"lead-stubborn":  func(int) Policy { return LeadStubbornPolicy() },
	"trail-stubborn": TrailStubbornPolicy,
}

// NewPolicy looks up a preset by name.
func NewPolicy(name string, trail int) (Policy, error) {
	ctor, ok := Policies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPolicy, name, PolicyNames())
	}
	return ctor(trail), nil
}

func PolicyNames() []string {
	names := make([]string, 0, len(Policies))
	for name := range Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package team

import (
	"fmt"
	"regexp"
	"strings"

	"trpc.group/trpc-go/trpc-crew-go/agent"
	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/session"
)

// Turn policy names.
const (
	PolicyRoundRobin  = "round_robin"
	PolicyCoordinator = "coordinator"
	PolicyHandoff     = "handoff"
)

// Decision is a turn policy's choice of next speaker. Corrective, when
// set, is delivered to the speaker as a system note before its step.
type Decision struct {
	Speaker    *agent.Runtime
	Corrective string
}

// TurnPolicy picks the next speaker from the stored record. A policy
// must be a pure function of the team and the messages so a resumed
// task reaches the same decision as an uninterrupted run.
//
// All policies keep the floor with the requester right after its tool
// result, so the agent that called a tool always reacts to the outcome
// before anyone else speaks.
type TurnPolicy interface {
	// Name identifies the policy.
	Name() string
	// NextSpeaker returns the member who speaks next.
	NextSpeaker(t *Team, messages []session.Message) Decision
}

var (
	nextDirective    = regexp.MustCompile(`NEXT:\s*([A-Za-z0-9_-]+)`)
	handoffDirective = regexp.MustCompile(`HANDOFF:\s*([A-Za-z0-9_-]+)`)
)

// lastDirective returns the capture of the final directive occurrence
// in content. Agents sometimes restate earlier directives while
// reasoning; the last one wins.
func lastDirective(re *regexp.Regexp, content string) (string, bool) {
	matches := re.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}

type roundRobin struct{}

// NewRoundRobinPolicy returns a policy that cycles members in roster
// order.
func NewRoundRobinPolicy() TurnPolicy { return roundRobin{} }

// Name implements TurnPolicy.
func (roundRobin) Name() string { return PolicyRoundRobin }

// NextSpeaker implements TurnPolicy.
func (roundRobin) NextSpeaker(t *Team, messages []session.Message) Decision {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		switch m.Role {
		case model.RoleTool:
			if requester, ok := t.Member(m.Sender); ok {
				return Decision{Speaker: requester}
			}
			return Decision{Speaker: t.first()}
		case model.RoleAssistant:
			return Decision{Speaker: t.after(m.Sender)}
		}
	}
	return Decision{Speaker: t.first()}
}

type coordinatorPolicy struct {
	lead string
}

// NewCoordinatorPolicy returns a policy where the named lead is
// consulted between member turns and routes with a "NEXT: <member>"
// directive in its message. An unparseable or unknown directive falls
// back to roster order.
func NewCoordinatorPolicy(lead string) TurnPolicy {
	return coordinatorPolicy{lead: lead}
}

// Name implements TurnPolicy.
func (coordinatorPolicy) Name() string { return PolicyCoordinator }

// NextSpeaker implements TurnPolicy.
func (p coordinatorPolicy) NextSpeaker(t *Team, messages []session.Message) Decision {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		switch m.Role {
		case model.RoleTool:
			if requester, ok := t.Member(m.Sender); ok {
				return Decision{Speaker: requester}
			}
			return Decision{Speaker: t.first()}
		case model.RoleAssistant:
			if m.Sender != p.lead {
				// The lead reviews every member turn before routing.
				if lead, ok := t.Member(p.lead); ok {
					return Decision{Speaker: lead}
				}
				return Decision{Speaker: t.after(m.Sender)}
			}
			name, ok := lastDirective(nextDirective, m.Content)
			if !ok {
				log.Debugf("Lead %s gave no NEXT directive, falling back to roster order", p.lead)
				return Decision{Speaker: t.after(m.Sender)}
			}
			member, found := t.Member(name)
			if !found {
				log.Warnf("Lead %s routed to unknown member %s, falling back to roster order", p.lead, name)
				return Decision{Speaker: t.after(m.Sender)}
			}
			return Decision{Speaker: member}
		}
	}
	if lead, ok := t.Member(p.lead); ok {
		return Decision{Speaker: lead}
	}
	return Decision{Speaker: t.first()}
}

type handoffPolicy struct{}

// NewHandoffPolicy returns a policy where the current speaker keeps the
// floor until it hands off with a "HANDOFF: <member>" directive. A
// handoff to an unknown name keeps the floor and tells the speaker who
// the members are.
func NewHandoffPolicy() TurnPolicy { return handoffPolicy{} }

// Name implements TurnPolicy.
func (handoffPolicy) Name() string { return PolicyHandoff }

// NextSpeaker implements TurnPolicy.
func (handoffPolicy) NextSpeaker(t *Team, messages []session.Message) Decision {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		switch m.Role {
		case model.RoleTool:
			if requester, ok := t.Member(m.Sender); ok {
				return Decision{Speaker: requester}
			}
			return Decision{Speaker: t.first()}
		case model.RoleAssistant:
			holder, ok := t.Member(m.Sender)
			if !ok {
				return Decision{Speaker: t.first()}
			}
			name, found := lastDirective(handoffDirective, m.Content)
			if !found {
				return Decision{Speaker: holder}
			}
			target, known := t.Member(name)
			if !known {
				return Decision{
					Speaker: holder,
					Corrective: fmt.Sprintf(
						"You handed off to %s, who is not on this team. The members are: %s. Hand off to one of them or finish the task yourself.",
						name, strings.Join(t.MemberNames(), ", ")),
				}
			}
			return Decision{Speaker: target}
		}
	}
	return Decision{Speaker: t.first()}
}

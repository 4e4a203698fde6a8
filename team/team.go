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
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-crew-go/agent"
)

var (
	errEmptyTeamName = errors.New("team name is empty")
	errNoMembers     = errors.New("team has no members")
)

// Team is an immutable, ordered roster of agent runtimes. Member order
// is the roster order policies fall back to.
type Team struct {
	name         string
	members      []*agent.Runtime
	memberByName map[string]*agent.Runtime
}

// New creates a team from the given members. Empty or duplicate member
// names are rejected.
func New(name string, members ...*agent.Runtime) (*Team, error) {
	if name == "" {
		return nil, errEmptyTeamName
	}
	memberByName, err := buildMemberIndex(members)
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", name, err)
	}
	roster := make([]*agent.Runtime, len(members))
	copy(roster, members)
	return &Team{
		name:         name,
		members:      roster,
		memberByName: memberByName,
	}, nil
}

// Name returns the team name.
func (t *Team) Name() string {
	return t.name
}

// Members returns the roster in order.
func (t *Team) Members() []*agent.Runtime {
	out := make([]*agent.Runtime, len(t.members))
	copy(out, t.members)
	return out
}

// MemberNames returns the member names in roster order.
func (t *Team) MemberNames() []string {
	names := make([]string, len(t.members))
	for i, m := range t.members {
		names[i] = m.Name()
	}
	return names
}

// Member looks up a member by name.
func (t *Team) Member(name string) (*agent.Runtime, bool) {
	m, ok := t.memberByName[name]
	return m, ok
}

// fork clones the roster with fresh per-task agent state, so runs of
// the same team never share corrective notes.
func (t *Team) fork() *Team {
	members := make([]*agent.Runtime, len(t.members))
	memberByName := make(map[string]*agent.Runtime, len(t.members))
	for i, m := range t.members {
		members[i] = m.Fork()
		memberByName[members[i].Name()] = members[i]
	}
	return &Team{
		name:         t.name,
		members:      members,
		memberByName: memberByName,
	}
}

// after returns the member following the named one in roster order,
// wrapping around. Unknown names restart from the first member.
func (t *Team) after(name string) *agent.Runtime {
	for i, m := range t.members {
		if m.Name() == name {
			return t.members[(i+1)%len(t.members)]
		}
	}
	return t.members[0]
}

// first returns the first roster member.
func (t *Team) first() *agent.Runtime {
	return t.members[0]
}

func buildMemberIndex(members []*agent.Runtime) (map[string]*agent.Runtime, error) {
	if len(members) == 0 {
		return nil, errNoMembers
	}
	memberByName := make(map[string]*agent.Runtime, len(members))
	for _, m := range members {
		if m == nil {
			return nil, errors.New("member is nil")
		}
		name := m.Name()
		if name == "" {
			return nil, errors.New("member name is empty")
		}
		if memberByName[name] != nil {
			return nil, fmt.Errorf("duplicate member name %q", name)
		}
		memberByName[name] = m
	}
	return memberByName, nil
}

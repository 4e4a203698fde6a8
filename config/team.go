//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"trpc.group/trpc-go/trpc-crew-go/agent"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/team"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// TeamManifest describes an agent team in JSON form.
type TeamManifest struct {
	// Name identifies the team.
	Name string `json:"name"`

	// Policy selects the turn-taking policy: round_robin (the default),
	// coordinator, or handoff.
	Policy string `json:"policy,omitempty"`

	// Lead names the routing agent for the coordinator policy. Defaults
	// to the last member.
	Lead string `json:"lead,omitempty"`

	// MaxTurns caps the task turn count. Zero keeps the default.
	MaxTurns int `json:"max_turns,omitempty"`

	// Members lists the roster in speaking order.
	Members []MemberConfig `json:"members"`
}

// MemberConfig describes one team member. A member omitting allowed_tools
// may use every tool mounted in the registry; an explicit empty list
// grants none.
type MemberConfig struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Instructions string   `json:"instructions"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

// LoadTeam reads and validates the team manifest at path.
func LoadTeam(path string) (*TeamManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	tm, err := ParseTeam(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return tm, nil
}

// ParseTeam parses and validates team manifest JSON.
func ParseTeam(data []byte) (*TeamManifest, error) {
	var tm TeamManifest
	if err := json.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("parsing team manifest: %w", err)
	}
	if err := tm.Validate(); err != nil {
		return nil, err
	}
	return &tm, nil
}

// Validate checks the manifest for structural problems.
func (tm *TeamManifest) Validate() error {
	if tm.Name == "" {
		return errors.New("team name is required")
	}
	if len(tm.Members) == 0 {
		return fmt.Errorf("team %s has no members", tm.Name)
	}
	seen := make(map[string]struct{}, len(tm.Members))
	for i, member := range tm.Members {
		if member.Name == "" {
			return fmt.Errorf("team %s: member %d has no name", tm.Name, i)
		}
		if member.Instructions == "" {
			return fmt.Errorf("team %s: member %s has no instructions", tm.Name, member.Name)
		}
		if _, ok := seen[member.Name]; ok {
			return fmt.Errorf("team %s: duplicate member %s", tm.Name, member.Name)
		}
		seen[member.Name] = struct{}{}
	}
	if tm.MaxTurns < 0 {
		return fmt.Errorf("team %s: max_turns must not be negative", tm.Name)
	}
	if _, err := tm.TurnPolicy(); err != nil {
		return fmt.Errorf("team %s: %w", tm.Name, err)
	}
	return nil
}

// TurnPolicy resolves the manifest's policy selection.
func (tm *TeamManifest) TurnPolicy() (team.TurnPolicy, error) {
	if tm.Lead != "" && tm.Policy != team.PolicyCoordinator {
		return nil, fmt.Errorf("lead requires the %s policy", team.PolicyCoordinator)
	}
	switch tm.Policy {
	case "", team.PolicyRoundRobin:
		return team.NewRoundRobinPolicy(), nil
	case team.PolicyHandoff:
		return team.NewHandoffPolicy(), nil
	case team.PolicyCoordinator:
		lead := tm.Lead
		if lead == "" && len(tm.Members) > 0 {
			lead = tm.Members[len(tm.Members)-1].Name
		}
		if !tm.hasMember(lead) {
			return nil, fmt.Errorf("lead %s is not a member", lead)
		}
		return team.NewCoordinatorPolicy(lead), nil
	default:
		return nil, fmt.Errorf("unknown policy: %s", tm.Policy)
	}
}

// Build constructs the team and its coordinator options. The registry
// supplies tool declarations; members without an explicit allow-list may
// use every tool mounted in it.
func (tm *TeamManifest) Build(m model.Model, registry *tool.Registry) (*team.Team, []team.Option, error) {
	if err := tm.Validate(); err != nil {
		return nil, nil, err
	}
	var names []string
	if registry != nil {
		names = registry.Names()
	}
	members := make([]*agent.Runtime, 0, len(tm.Members))
	for _, member := range tm.Members {
		def := agent.Definition{
			Name:         member.Name,
			Description:  member.Description,
			Instructions: member.Instructions,
			AllowedTools: member.AllowedTools,
		}
		if def.AllowedTools == nil {
			def.AllowedTools = names
		}
		rt, err := agent.NewRuntime(def, m, registry)
		if err != nil {
			return nil, nil, err
		}
		members = append(members, rt)
	}
	t, err := team.New(tm.Name, members...)
	if err != nil {
		return nil, nil, err
	}
	policy, err := tm.TurnPolicy()
	if err != nil {
		return nil, nil, err
	}
	opts := []team.Option{team.WithPolicy(policy)}
	if tm.MaxTurns > 0 {
		opts = append(opts, team.WithMaxTurns(tm.MaxTurns))
	}
	return t, opts, nil
}

func (tm *TeamManifest) hasMember(name string) bool {
	for _, member := range tm.Members {
		if member.Name == name {
			return true
		}
	}
	return false
}

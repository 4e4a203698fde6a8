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
	"trpc.group/trpc-go/trpc-crew-go/agent"
	"trpc.group/trpc-go/trpc-crew-go/model"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

const (
	researchMaxTurns    = 20
	developmentMaxTurns = 25
)

const researcherInstructions = `You are a research specialist. Your responsibilities:
- Conduct thorough research on the given topic.
- Gather information from multiple sources with the available tools.
- Analyze and synthesize research findings.
- Provide well-structured, fact-based insights.

Focus on accuracy, depth, and actionable insights. Collaborate with the other agents and keep your responses clear.`

const analystInstructions = `You are a data analysis specialist. Your responsibilities:
- Analyze research data and findings.
- Identify patterns, trends, and insights.
- Create structured reports and summaries.
- Use file operations to save and retrieve analysis results.
- Validate findings together with the researcher.

Focus on objectivity and clear communication of insights.`

const technicalExpertInstructions = `You are a technical expert. Your responsibilities:
- Provide technical expertise and solutions.
- Evaluate the technical feasibility of proposals.
- Suggest implementation approaches.
- Use GitHub search to find relevant code and projects.

Focus on practical solutions, best practices, and technical accuracy.`

const leadCoordinatorInstructions = `You are the project coordinator. Your responsibilities:
- Coordinate tasks and workflow between the agents.
- Review each agent's contribution and decide who acts next.
- Synthesize inputs from the different agents.
- Facilitate decision making and keep the team on track.

After reviewing the conversation, either:
- name who should act next on the last line of your message as "NEXT: <member>", or
- if the task is fully resolved, write the final summary and end your message with TERMINATE.`

const developerInstructions = `You are a software development specialist. Your responsibilities:
- Write high-quality code and scripts.
- Review and debug code.
- Use file operations to create and manage code files.
- Collaborate with the architect and the tester.

Focus on clean, efficient, well-documented code. When the team has fully completed the task, end your message with TERMINATE.`

const architectInstructions = `You are a software architecture specialist. Your responsibilities:
- Design system architecture and components.
- Make technical decisions and trade-offs.
- Create technical specifications.
- Ensure scalability and maintainability.

Focus on robust, scalable, maintainable solutions. When the team has fully completed the task, end your message with TERMINATE.`

const testerInstructions = `You are a quality assurance specialist. Your responsibilities:
- Create test plans and test cases.
- Identify potential issues and edge cases.
- Validate functionality and performance.
- Collaborate with the developer to resolve issues.

Focus on comprehensive testing and quality. When the team has fully completed the task, end your message with TERMINATE.`

const devOpsInstructions = `You are a DevOps specialist. Your responsibilities:
- Manage deployment and infrastructure.
- Set up CI/CD pipelines.
- Ensure security and performance.
- Create deployment documentation.

Focus on automation, reliability, and operational excellence. When the team has fully completed the task, end your message with TERMINATE.`

// Research builds the four-agent research team: a Researcher, an
// Analyst, a TechnicalExpert, and a Coordinator lead that routes turns.
// Every member may use every tool mounted in the registry. The returned
// options select the coordinator policy and the team's turn limit.
func Research(m model.Model, registry *tool.Registry) (*Team, []Option, error) {
	members, err := buildRuntimes(m, registry, []agent.Definition{
		{Name: "Researcher", Description: "Research Specialist", Instructions: researcherInstructions},
		{Name: "Analyst", Description: "Data Analyst", Instructions: analystInstructions},
		{Name: "TechnicalExpert", Description: "Technical Specialist", Instructions: technicalExpertInstructions},
		{Name: "Coordinator", Description: "Project Coordinator", Instructions: leadCoordinatorInstructions},
	})
	if err != nil {
		return nil, nil, err
	}
	t, err := New("research", members...)
	if err != nil {
		return nil, nil, err
	}
	opts := []Option{
		WithPolicy(NewCoordinatorPolicy("Coordinator")),
		WithMaxTurns(researchMaxTurns),
	}
	return t, opts, nil
}

// Development builds the four-agent development team: a Developer, an
// Architect, a Tester, and a DevOps engineer taking turns in roster
// order. Every member may use every tool mounted in the registry.
func Development(m model.Model, registry *tool.Registry) (*Team, []Option, error) {
	members, err := buildRuntimes(m, registry, []agent.Definition{
		{Name: "Developer", Description: "Software Developer", Instructions: developerInstructions},
		{Name: "Architect", Description: "Software Architect", Instructions: architectInstructions},
		{Name: "Tester", Description: "Quality Assurance", Instructions: testerInstructions},
		{Name: "DevOps", Description: "DevOps Engineer", Instructions: devOpsInstructions},
	})
	if err != nil {
		return nil, nil, err
	}
	t, err := New("development", members...)
	if err != nil {
		return nil, nil, err
	}
	opts := []Option{
		WithPolicy(NewRoundRobinPolicy()),
		WithMaxTurns(developmentMaxTurns),
	}
	return t, opts, nil
}

func buildRuntimes(m model.Model, registry *tool.Registry, defs []agent.Definition) ([]*agent.Runtime, error) {
	var names []string
	if registry != nil {
		names = registry.Names()
	}
	runtimes := make([]*agent.Runtime, 0, len(defs))
	for _, def := range defs {
		def.AllowedTools = names
		rt, err := agent.NewRuntime(def, m, registry)
		if err != nil {
			return nil, err
		}
		runtimes = append(runtimes, rt)
	}
	return runtimes, nil
}

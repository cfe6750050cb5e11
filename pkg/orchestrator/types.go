// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/errors"
	"github.com/jllopis/rpcagent/pkg/registry"
)

// API paths relative to the orchestrator base URL.
const (
	PathRegisterAgent     = "/api/v1/retoolrpc/registerAgent"
	PathPopQuery          = "/api/v1/retoolrpc/popQuery"
	PathPostQueryResponse = "/api/v1/retoolrpc/postQueryResponse"
)

// RegisterAgentRequest announces the agent and its function catalog.
type RegisterAgentRequest struct {
	ResourceID      string                       `json:"resourceId"`
	EnvironmentName string                       `json:"environmentName"`
	Version         string                       `json:"version"`
	AgentUUID       string                       `json:"agentUuid"`
	Operations      map[string]registry.Metadata `json:"operations"`
}

// RegisterAgentResponse acknowledges a registration.
type RegisterAgentResponse struct {
	VersionHash string `json:"versionHash"`
}

// PopQueryRequest asks for the next pending query.
type PopQueryRequest struct {
	ResourceID      string `json:"resourceId"`
	EnvironmentName string `json:"environmentName"`
	AgentUUID       string `json:"agentUuid"`
	VersionHash     string `json:"versionHash"`
}

// PopQueryResponse carries at most one pending query.
type PopQueryResponse struct {
	Query *PendingQuery `json:"query"`
}

// PendingQuery is a unit of work assigned to the agent.
type PendingQuery struct {
	QueryUUID string    `json:"queryUuid"`
	QueryInfo QueryInfo `json:"queryInfo"`
}

// QueryInfo names the function to run and its raw arguments.
type QueryInfo struct {
	Method     string                 `json:"method"`
	Parameters any                    `json:"parameters"`
	Context    core.InvocationContext `json:"context"`
}

// QueryStatus is the outcome reported for a query.
type QueryStatus string

const (
	QueryStatusSuccess QueryStatus = "success"
	QueryStatusError   QueryStatus = "error"
)

// QueryMetadata describes how a query was executed.
type QueryMetadata struct {
	PackageLanguage      string         `json:"packageLanguage"`
	PackageVersion       string         `json:"packageVersion"`
	AgentReceivedQueryAt string         `json:"agentReceivedQueryAt"`
	AgentFinishedQueryAt string         `json:"agentFinishedQueryAt"`
	Parameters           map[string]any `json:"parameters"`
}

// PostQueryResponseRequest reports the outcome of a query. Exactly one of
// Data and Error is set, matching Status.
type PostQueryResponseRequest struct {
	ResourceID      string                  `json:"resourceId"`
	EnvironmentName string                  `json:"environmentName"`
	VersionHash     string                  `json:"versionHash"`
	AgentUUID       string                  `json:"agentUuid"`
	QueryUUID       string                  `json:"queryUuid"`
	Status          QueryStatus             `json:"status"`
	Data            any                     `json:"data,omitempty"`
	Error           *errors.NormalizedError `json:"error,omitempty"`
	Metadata        QueryMetadata           `json:"metadata"`
}

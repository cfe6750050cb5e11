// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/jllopis/rpcagent/pkg/core"
)

// UnhealthyAfterFailures is the number of consecutive loop failures after
// which the agent reports itself unhealthy.
const UnhealthyAfterFailures = 5

// healthState is the loop progress tracked for health checks. Guarded by
// Agent.mu.
type healthState struct {
	registered bool
	rejected   bool
	failures   int
	lastError  string
	lastPoll   time.Time
}

func (a *Agent) recordFailure(err error) {
	a.mu.Lock()
	a.health.failures++
	a.health.lastError = err.Error()
	a.mu.Unlock()
}

func (a *Agent) recordRejected() {
	a.mu.Lock()
	a.health.rejected = true
	a.mu.Unlock()
}

func (a *Agent) recordPoll() {
	a.mu.Lock()
	a.health.lastPoll = time.Now()
	a.mu.Unlock()
}

// recordSuccess clears the failure streak once a whole fetch iteration,
// including the report, has gone through.
func (a *Agent) recordSuccess() {
	a.mu.Lock()
	a.health.failures = 0
	a.health.lastError = ""
	a.mu.Unlock()
}

// Check reports whether the agent is registered and reaching the
// orchestrator. It implements core.HealthChecker.
func (a *Agent) Check(_ context.Context) core.HealthResult {
	a.mu.RLock()
	state := a.health
	a.mu.RUnlock()

	result := core.HealthResult{
		Component: "agent:" + a.opts.AgentUUID,
		LastCheck: time.Now(),
	}

	switch {
	case state.rejected:
		result.Status = core.HealthUnhealthy
		result.Message = "rejected by orchestrator"
	case state.failures >= UnhealthyAfterFailures:
		result.Status = core.HealthUnhealthy
		result.Message = fmt.Sprintf("%d consecutive failures: %s", state.failures, state.lastError)
	case state.failures > 0:
		result.Status = core.HealthDegraded
		result.Message = fmt.Sprintf("retrying after %d failures: %s", state.failures, state.lastError)
	case !state.registered:
		result.Status = core.HealthDegraded
		result.Message = "not registered"
	default:
		result.Status = core.HealthHealthy
		result.Message = "agent operational"
		if !state.lastPoll.IsZero() {
			result.Message = "last poll " + state.lastPoll.UTC().Format(time.RFC3339)
		}
	}
	return result
}

// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package health

import (
	"context"
	"time"
)

// Pinger is implemented by a storage backend so the health checker can
// verify connectivity without importing the storage package directly
// (storage/postgres pulls in pgx; callers that only need memory storage
// shouldn't have to link it).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker performs health checks
type Checker struct {
	backend string
	pinger  Pinger
}

// NewChecker creates a new health checker for the given storage backend.
func NewChecker(backend string, pinger Pinger) *Checker {
	return &Checker{
		backend: backend,
		pinger:  pinger,
	}
}

// CheckAll performs all health checks
func (c *Checker) CheckAll(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Errors:    make([]string, 0),
	}

	status.StorageStatus = c.checkStorage(ctx)
	if status.StorageStatus.Status != StatusHealthy {
		status.Status = status.StorageStatus.Status
		if status.StorageStatus.Error != "" {
			status.Errors = append(status.Errors, "Storage: "+status.StorageStatus.Error)
		}
	}

	status.SystemStatus = CheckSystem()
	if status.SystemStatus.Status != StatusHealthy {
		if status.Status == StatusHealthy {
			status.Status = status.SystemStatus.Status
		} else if status.SystemStatus.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
		if status.SystemStatus.Error != "" {
			status.Errors = append(status.Errors, "System: "+status.SystemStatus.Error)
		}
	}

	return status
}

func (c *Checker) checkStorage(ctx context.Context) *StorageHealth {
	health := &StorageHealth{Backend: c.backend, Status: StatusUnhealthy}

	if c.pinger == nil {
		health.Error = "no storage backend configured"
		return health
	}

	start := time.Now()
	if err := c.pinger.Ping(ctx); err != nil {
		health.Error = err.Error()
		return health
	}

	health.Connected = true
	health.Status = StatusHealthy
	health.Latency = time.Since(start).String()
	return health
}

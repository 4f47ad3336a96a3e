// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics exposes Prometheus collectors for the epoch/commit flow
// (mls), group sessions (channel), encrypted envelopes (envelope) and the
// crypto primitives facade, all registered under one private registry so
// a single HTTP handler (Handler) can serve them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "spacepanda"

// Registry is the private Prometheus registry all collectors in this
// package register against, so metrics-disabled nodes never touch the
// global default registry.
var Registry = prometheus.NewRegistry()

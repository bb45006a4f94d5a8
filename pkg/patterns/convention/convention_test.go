// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package convention

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPattern_NoObservationsIsEmerging(t *testing.T) {
	p := NewPattern("error-wrap", "error_handling")
	require.Equal(t, 0.5, p.Posterior())
	require.Equal(t, StatusEmerging, p.Classify())
}

func TestPattern_ConsistentFollowsBecomesUniversal(t *testing.T) {
	p := NewPattern("error-wrap", "error_handling")
	for i := 0; i < 20; i++ {
		p.Observe(Observation{Follows: true}, i)
	}
	require.Greater(t, p.Posterior(), 0.90)
	require.Equal(t, StatusUniversal, p.Classify())
}

func TestPattern_MixedObservationsIsContestedOrProjectSpecific(t *testing.T) {
	p := NewPattern("naming", "naming")
	for i := 0; i < 6; i++ {
		p.Observe(Observation{Follows: true}, i)
	}
	for i := 0; i < 5; i++ {
		p.Observe(Observation{Follows: false}, i+6)
	}
	status := p.Classify()
	require.Contains(t, []Status{StatusContested, StatusProjectSpecific}, status)
}

func TestPattern_SmallSampleStaysEmergingEvenIfPerfect(t *testing.T) {
	p := NewPattern("new-pattern", "middleware")
	p.Observe(Observation{Follows: true}, 0)
	p.Observe(Observation{Follows: true}, 1)
	require.Equal(t, StatusEmerging, p.Classify())
}

func TestPattern_RecentViolationsPullTowardLegacy(t *testing.T) {
	p := NewPattern("old-pattern", "error_handling")
	for i := 0; i < 10; i++ {
		p.Observe(Observation{Follows: true}, i)
	}
	for i := 0; i < 8; i++ {
		p.Observe(Observation{Follows: false}, i+10)
	}
	require.Less(t, p.momentum, p.Posterior())
}

func TestPattern_ConfidenceIsRounded(t *testing.T) {
	p := NewPattern("x", "x")
	p.Observe(Observation{Follows: true}, 0)
	require.InDelta(t, p.Posterior(), p.Confidence(), 0.001)
}

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

package feedback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_DisablesHighDismissalRateRule(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 9; i++ {
		tr.Record("secret.generic_api_key_assignment", DispositionDismissed)
	}
	tr.Record("secret.generic_api_key_assignment", DispositionConfirmed)

	require.True(t, tr.IsDisabled("secret.generic_api_key_assignment"))
}

func TestTracker_KeepsRuleEnabledBelowMinSample(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 5; i++ {
		tr.Record("rule.x", DispositionDismissed)
	}
	require.False(t, tr.IsDisabled("rule.x"))
}

func TestTracker_KeepsRuleEnabledWithLowDismissalRate(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 9; i++ {
		tr.Record("rule.y", DispositionConfirmed)
	}
	tr.Record("rule.y", DispositionDismissed)
	require.False(t, tr.IsDisabled("rule.y"))
}

func TestTracker_ReenableClearsState(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 10; i++ {
		tr.Record("rule.z", DispositionDismissed)
	}
	require.True(t, tr.IsDisabled("rule.z"))

	tr.Reenable("rule.z")
	require.False(t, tr.IsDisabled("rule.z"))
	_, hasData := tr.DismissalRate("rule.z")
	require.False(t, hasData)
}

func TestTracker_DismissalRateReportsUnknownRule(t *testing.T) {
	tr := NewTracker()
	_, hasData := tr.DismissalRate("unknown")
	require.False(t, hasData)
}

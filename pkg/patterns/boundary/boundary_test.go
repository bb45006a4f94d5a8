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

package boundary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchExtractor_RecognizesGormCreate(t *testing.T) {
	lib, op, ok := MatchExtractor(`db.Create(&user)`)
	require.True(t, ok)
	require.Equal(t, "gorm", lib)
	require.Equal(t, OpWrite, op)
}

func TestMatchExtractor_RecognizesPrismaUpdate(t *testing.T) {
	lib, op, ok := MatchExtractor(`prisma.user.update({ where })`)
	require.True(t, ok)
	require.Equal(t, "prisma", lib)
	require.Equal(t, OpUpdate, op)
}

func TestMatchExtractor_UnrecognizedCallReturnsFalse(t *testing.T) {
	_, _, ok := MatchExtractor(`strings.ToUpper(x)`)
	require.False(t, ok)
}

func TestClassifyField_RecognizesAuthBeforeGenericPII(t *testing.T) {
	require.Equal(t, SensitivityAuth, ClassifyField("password_hash"))
	require.Equal(t, SensitivityFinancial, ClassifyField("credit_card_number"))
	require.Equal(t, SensitivityPII, ClassifyField("email_address"))
	require.Equal(t, SensitivityNone, ClassifyField("created_at"))
}

func TestClassifyFields_OmitsUnclassified(t *testing.T) {
	result := ClassifyFields([]string{"id", "email", "created_at", "ssn"})
	require.Len(t, result, 2)
}

func TestExtractorTable_HasAtLeastThirtyThreeEntries(t *testing.T) {
	require.GreaterOrEqual(t, len(ormExtractors), 33)
}

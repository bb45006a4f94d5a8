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

package extract

import "regexp"

// frameworkSignature recognizes a function's role (route handler,
// middleware) from its signature shape, without needing a type-checker —
// the same declarative, data-driven matching boundary's ORM table uses,
// since both problems are "does this signature look like a known
// library's callback shape."
type frameworkSignature struct {
	Language string
	Role     string
	Pattern  *regexp.Regexp
}

var frameworkSignatures = []frameworkSignature{
	{"go", "http_handler", regexp.MustCompile(`func\s*\([^)]*\)\s*\(?\s*(http\.ResponseWriter|\*gin\.Context|echo\.Context|\*fiber\.Ctx)`)},
	{"go", "middleware", regexp.MustCompile(`func\([^)]*http\.Handler\)\s*http\.Handler`)},
	{"go", "middleware", regexp.MustCompile(`func\([^)]*\*gin\.Context[^)]*\)`)},
	{"javascript", "http_handler", regexp.MustCompile(`\(req,\s*res(,\s*next)?\)`)},
	{"javascript", "middleware", regexp.MustCompile(`\(req,\s*res,\s*next\)`)},
	{"typescript", "http_handler", regexp.MustCompile(`\(req:\s*Request,\s*res:\s*Response`)},
	{"typescript", "middleware", regexp.MustCompile(`\(req:\s*Request,\s*res:\s*Response,\s*next:\s*NextFunction\)`)},
	{"python", "http_handler", regexp.MustCompile(`\(request(:\s*Request)?\)`)},
	{"python", "middleware", regexp.MustCompile(`\(request,\s*call_next\)`)},
}

// MatchFrameworkRole returns the first recognized role a signature
// matches for language, or "" if none of the table's entries apply.
func MatchFrameworkRole(language, signature string) string {
	for _, fs := range frameworkSignatures {
		if fs.Language != language {
			continue
		}
		if fs.Pattern.MatchString(signature) {
			return fs.Role
		}
	}
	return ""
}

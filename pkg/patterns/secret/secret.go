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

// Package secret scans source text for hardcoded credentials: ~100 named
// provider patterns (AWS, GCP, Azure, GitHub, Stripe, ...) plus a Shannon
// entropy fallback for high-entropy literals no named pattern covers, with
// context adjustments that lower confidence for test fixtures and example
// values.
package secret

import (
	"math"
	"regexp"
	"strings"
)

// Finding is one suspected credential located in source text.
type Finding struct {
	Provider   string
	Match      string
	Line       int
	Confidence float64
	Entropy    float64
}

type compiledProvider struct {
	name     string
	re       *regexp.Regexp
	baseConf float64
}

// Detector holds the compiled provider regexes; compiling once at
// construction avoids re-compiling ~100 patterns per file scanned.
type Detector struct {
	compiled []compiledProvider
	minEntropy float64
}

// entropyAlphabetMin is the shortest candidate literal worth running
// through the entropy test; shorter strings don't carry enough signal.
const entropyAlphabetMin = 20

// defaultMinEntropy is the Shannon entropy (bits/char) above which an
// unrecognized literal is treated as a high-entropy secret candidate.
const defaultMinEntropy = 4.5

// Confidence adjustments applied additively on top of a match's base
// confidence, one per context signal observed at the match site.
const (
	sensitiveNameBonus = 0.10
	testFileDelta      = -0.20
	commentDelta       = -0.30
	dotEnvBonus        = 0.10
)

// New compiles the provider table into a ready-to-use Detector.
func New() *Detector {
	d := &Detector{minEntropy: defaultMinEntropy}
	for _, p := range providers {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			// A malformed provider pattern is a defect in the table, not
			// something a single bad commit should be able to trigger at
			// scan time; skip it rather than panic so the rest of the
			// table still runs.
			continue
		}
		d.compiled = append(d.compiled, compiledProvider{name: p.Name, re: re, baseConf: p.BaseConf})
	}
	return d
}

// testFixtureMarkers are path/line substrings that suggest a match is a
// fixture or example value rather than a live credential.
var testFixtureMarkers = []string{
	"_test.go", "test/", "tests/", "fixture", "example", "mock", "sample", "dummy", "placeholder",
}

// sensitiveNameMarkers are variable-name substrings that raise confidence
// a matched literal is actually being assigned to a credential, rather
// than appearing incidentally (e.g. inside a comment referencing one).
var sensitiveNameMarkers = []string{
	"secret", "key", "token", "password", "passwd", "credential", "apikey", "api_key",
}

// commentPrefixes recognizes a line that is entirely a comment in every
// language the extractor supports, for the comment-context confidence
// penalty.
var commentPrefixes = []string{"//", "#", "*", "/*", "--"}

// placeholderPattern matches the literal forms a real credential never
// takes: angle-bracket or templated placeholders ("<YOUR_KEY>",
// "{{token}}"), the word "xxx"/"example" standing in for a value, and
// runs of a single repeated character.
var placeholderPattern = regexp.MustCompile(`(?i)^(<.*>|\{\{.*\}\}|x{3,}|0{6,}|(.)\2{7,}|your[_-]?(api[_-]?)?key|changeme|example|sample)$`)

// Scan runs every compiled provider pattern, plus the entropy fallback for
// quoted string literals, against one file's text. path carries the
// test-file/.env context adjustments described by the confidence model.
func (d *Detector) Scan(path, text string) []Finding {
	if isMarkdownPath(path) {
		return nil
	}

	var findings []Finding
	lines := strings.Split(text, "\n")

	for _, cp := range d.compiled {
		for _, loc := range cp.re.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if isPlaceholder(match) {
				continue
			}
			line := lineOf(text, loc[0])
			conf := adjustConfidence(cp.baseConf, path, lines, line)
			findings = append(findings, Finding{
				Provider:   cp.name,
				Match:      match,
				Line:       line,
				Confidence: conf,
				Entropy:    shannonEntropy(match),
			})
		}
	}

	for lineNum, literal := range quotedLiterals(text) {
		if len(literal) < entropyAlphabetMin {
			continue
		}
		if alreadyCovered(findings, lineNum) {
			continue
		}
		if isPlaceholder(literal) {
			continue
		}
		e := shannonEntropy(literal)
		if e <= d.minEntropy {
			continue
		}
		conf := adjustConfidence(entropyConfidence(e), path, lines, lineNum)
		findings = append(findings, Finding{
			Provider:   "high_entropy_literal",
			Match:      literal,
			Line:       lineNum,
			Confidence: conf,
			Entropy:    e,
		})
	}

	return findings
}

// adjustConfidence applies the additive context deltas the confidence
// model specifies on top of a match's base confidence, clamped to [0, 1].
func adjustConfidence(base float64, path string, lines []string, line int) float64 {
	conf := base
	if isFixturePath(path) || isFixtureLine(lines, line) {
		conf += testFileDelta
	}
	if isCommentLine(lines, line) {
		conf += commentDelta
	}
	if hasSensitiveName(lines, line) {
		conf += sensitiveNameBonus
	}
	if isDotEnvPath(path) {
		conf += dotEnvBonus
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// isPlaceholder reports whether a matched literal is a stand-in value
// (angle-bracket placeholder, templated token, or a degenerate repeated
// run) rather than a credential, in which case the finding is dropped
// outright instead of reported at reduced confidence.
func isPlaceholder(match string) bool {
	return placeholderPattern.MatchString(strings.TrimSpace(match))
}

// isMarkdownPath reports whether path is documentation, whose fenced
// examples and comments are never a live credential.
func isMarkdownPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

func isDotEnvPath(path string) bool {
	base := strings.ToLower(path)
	return strings.HasSuffix(base, ".env") || strings.Contains(base, "/.env")
}

func isCommentLine(lines []string, lineNum int) bool {
	if lineNum < 1 || lineNum > len(lines) {
		return false
	}
	trimmed := strings.TrimSpace(lines[lineNum-1])
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func hasSensitiveName(lines []string, lineNum int) bool {
	if lineNum < 1 || lineNum > len(lines) {
		return false
	}
	lower := strings.ToLower(lines[lineNum-1])
	for _, marker := range sensitiveNameMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func lineOf(text string, offset int) int {
	return 1 + strings.Count(text[:offset], "\n")
}

func isFixturePath(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range testFixtureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isFixtureLine(lines []string, lineNum int) bool {
	if lineNum < 1 || lineNum > len(lines) {
		return false
	}
	lower := strings.ToLower(lines[lineNum-1])
	for _, marker := range testFixtureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var quotedLiteralRe = regexp.MustCompile(`["']([0-9A-Za-z+/=_\-]{20,200})["']`)

// quotedLiterals extracts quoted string literals, keyed by line number, as
// entropy-scan candidates.
func quotedLiterals(text string) map[int]string {
	out := make(map[int]string)
	for _, loc := range quotedLiteralRe.FindAllStringSubmatchIndex(text, -1) {
		literal := text[loc[2]:loc[3]]
		out[lineOf(text, loc[2])] = literal
	}
	return out
}

func alreadyCovered(findings []Finding, line int) bool {
	for _, f := range findings {
		if f.Line == line {
			return true
		}
	}
	return false
}

// shannonEntropy computes bits-per-character Shannon entropy over s.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	n := float64(len(s))
	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// entropyConfidence maps raw entropy onto a 0-1 confidence band anchored
// at minEntropy=0.5 confidence, saturating toward 0.85 as entropy climbs
// toward the maximum a base64-ish alphabet can produce (~6 bits/char).
func entropyConfidence(entropy float64) float64 {
	const anchor = defaultMinEntropy
	const ceiling = 6.0
	if entropy <= anchor {
		return 0.5
	}
	frac := (entropy - anchor) / (ceiling - anchor)
	if frac > 1 {
		frac = 1
	}
	return 0.5 + frac*0.35
}

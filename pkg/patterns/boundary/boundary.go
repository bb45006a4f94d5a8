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

// Package boundary locates data-access sites — calls through one of the
// supported ORM/query-builder APIs — and classifies which tables and
// fields they touch by sensitivity (PII, financial, auth, health,
// custom), the way the framework middleware table in pkg/extract
// classifies route handlers: one declarative entry per supported
// library rather than a bespoke visitor per ORM.
package boundary

import "strings"

// Operation is the kind of data access a boundary site performs.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Sensitivity classifies the kind of data a field holds.
type Sensitivity string

const (
	SensitivityPII       Sensitivity = "pii"
	SensitivityFinancial Sensitivity = "financial"
	SensitivityAuth      Sensitivity = "auth"
	SensitivityHealth    Sensitivity = "health"
	SensitivityCustom    Sensitivity = "custom"
	SensitivityNone      Sensitivity = ""
)

// Boundary is one located data-access site.
type Boundary struct {
	Table      string
	Operation  Operation
	Fields     []string
	Sensitive  []FieldSensitivity
	Symbol     string
	FilePath   string
	Line       int
}

// FieldSensitivity tags one accessed field with its classification.
type FieldSensitivity struct {
	Field       string
	Sensitivity Sensitivity
}

// ormExtractor recognizes one ORM/query-builder's call shape for a given
// operation. Pattern is the method name suffix the extractor dispatch
// table matches against (e.g. "Find", "Create", ".save(", "UPDATE ").
type ormExtractor struct {
	Library   string
	Pattern   string
	Operation Operation
}

// ormExtractors is the data-driven table of ORM call shapes this engine
// recognizes, covering the major ORM/query-builder library across the
// languages the extractor supports: Go (gorm, sqlx, ent, bun), Python
// (SQLAlchemy, Django ORM, Peewee, Tortoise), JS/TS (Prisma, TypeORM,
// Sequelize, Knex, Drizzle, Mongoose), Java (Hibernate, JPA, MyBatis,
// jOOQ, Spring Data), Ruby (ActiveRecord, Sequel), PHP (Eloquent,
// Doctrine), Rust (Diesel, SeaORM), C# (Entity Framework, Dapper).
var ormExtractors = []ormExtractor{
	{"gorm", ".Find(", OpRead}, {"gorm", ".First(", OpRead}, {"gorm", ".Create(", OpWrite},
	{"gorm", ".Save(", OpUpdate}, {"gorm", ".Updates(", OpUpdate}, {"gorm", ".Delete(", OpDelete},
	{"sqlx", ".Get(", OpRead}, {"sqlx", ".Select(", OpRead}, {"sqlx", ".NamedExec(", OpWrite},
	{"ent", ".Query()", OpRead}, {"ent", ".Create()", OpWrite}, {"ent", ".Update()", OpUpdate},
	{"ent", ".Delete()", OpDelete}, {"bun", ".NewSelect(", OpRead}, {"bun", ".NewInsert(", OpWrite},
	{"bun", ".NewUpdate(", OpUpdate}, {"bun", ".NewDelete(", OpDelete},
	{"sqlalchemy", ".query(", OpRead}, {"sqlalchemy", "session.add(", OpWrite},
	{"sqlalchemy", "session.delete(", OpDelete}, {"sqlalchemy", "session.commit(", OpUpdate},
	{"django_orm", ".objects.filter(", OpRead}, {"django_orm", ".objects.get(", OpRead},
	{"django_orm", ".objects.create(", OpWrite}, {"django_orm", ".save(", OpUpdate},
	{"django_orm", ".delete(", OpDelete},
	{"peewee", ".select(", OpRead}, {"peewee", ".create(", OpWrite}, {"peewee", ".update(", OpUpdate},
	{"tortoise", ".filter(", OpRead}, {"tortoise", ".create(", OpWrite},
	{"prisma", ".findMany(", OpRead}, {"prisma", ".findUnique(", OpRead}, {"prisma", ".create(", OpWrite},
	{"prisma", ".update(", OpUpdate}, {"prisma", ".delete(", OpDelete}, {"prisma", ".upsert(", OpUpdate},
	{"typeorm", ".find(", OpRead}, {"typeorm", ".findOne(", OpRead}, {"typeorm", ".save(", OpUpdate},
	{"typeorm", ".remove(", OpDelete}, {"typeorm", ".insert(", OpWrite},
	{"sequelize", ".findAll(", OpRead}, {"sequelize", ".findOne(", OpRead}, {"sequelize", ".create(", OpWrite},
	{"sequelize", ".update(", OpUpdate}, {"sequelize", ".destroy(", OpDelete},
	{"knex", "knex(", OpRead}, {"knex", ".insert(", OpWrite}, {"knex", ".where(", OpRead},
	{"drizzle", ".select()", OpRead}, {"drizzle", ".insert(", OpWrite}, {"drizzle", ".update(", OpUpdate},
	{"mongoose", ".find(", OpRead}, {"mongoose", ".findById(", OpRead}, {"mongoose", ".save(", OpUpdate},
	{"mongoose", ".deleteOne(", OpDelete}, {"mongoose", ".create(", OpWrite},
	{"hibernate", ".createQuery(", OpRead}, {"hibernate", "session.save(", OpWrite},
	{"hibernate", "session.update(", OpUpdate}, {"hibernate", "session.delete(", OpDelete},
	{"jpa", "EntityManager.find(", OpRead}, {"jpa", "EntityManager.persist(", OpWrite},
	{"jpa", "EntityManager.merge(", OpUpdate}, {"jpa", "EntityManager.remove(", OpDelete},
	{"mybatis", "SqlSession.selectOne(", OpRead}, {"mybatis", "SqlSession.insert(", OpWrite},
	{"jooq", ".fetch()", OpRead}, {"jooq", ".insertInto(", OpWrite}, {"jooq", ".update(", OpUpdate},
	{"spring_data", ".findById(", OpRead}, {"spring_data", ".save(", OpUpdate}, {"spring_data", ".deleteById(", OpDelete},
	{"active_record", ".find(", OpRead}, {"active_record", ".where(", OpRead}, {"active_record", ".create(", OpWrite},
	{"active_record", ".update(", OpUpdate}, {"active_record", ".destroy(", OpDelete},
	{"sequel_ruby", ".all(", OpRead}, {"sequel_ruby", ".insert(", OpWrite},
	{"eloquent", "::find(", OpRead}, {"eloquent", "::where(", OpRead}, {"eloquent", "::create(", OpWrite},
	{"eloquent", "->save(", OpUpdate}, {"eloquent", "->delete(", OpDelete},
	{"doctrine", "->findOneBy(", OpRead}, {"doctrine", "->persist(", OpWrite}, {"doctrine", "->remove(", OpDelete},
	{"diesel", ".load::<", OpRead}, {"diesel", "insert_into(", OpWrite}, {"diesel", "update(", OpUpdate},
	{"seaorm", "::find()", OpRead}, {"seaorm", "::insert(", OpWrite},
	{"entity_framework", ".Where(", OpRead}, {"entity_framework", ".Add(", OpWrite}, {"entity_framework", ".Remove(", OpDelete},
	{"dapper", ".Query<", OpRead}, {"dapper", ".Execute(", OpWrite},
}

// MatchExtractor returns the first ORM extractor whose pattern appears in
// callExpr, or false if none recognize it.
func MatchExtractor(callExpr string) (library string, op Operation, ok bool) {
	for _, e := range ormExtractors {
		if strings.Contains(callExpr, e.Pattern) {
			return e.Library, e.Operation, true
		}
	}
	return "", "", false
}

// sensitiveFieldNames maps lowercase field-name substrings to the
// sensitivity classification they imply; matched in table order so the
// more specific categories (auth, health, financial) take precedence
// over a generic PII guess.
var sensitiveFieldNames = []struct {
	substr      string
	sensitivity Sensitivity
}{
	{"password", SensitivityAuth}, {"passwd", SensitivityAuth}, {"secret", SensitivityAuth},
	{"token", SensitivityAuth}, {"api_key", SensitivityAuth}, {"session_id", SensitivityAuth},
	{"mfa", SensitivityAuth}, {"otp", SensitivityAuth},
	{"diagnosis", SensitivityHealth}, {"medical", SensitivityHealth}, {"prescription", SensitivityHealth},
	{"health", SensitivityHealth}, {"blood_type", SensitivityHealth}, {"icd_code", SensitivityHealth},
	{"credit_card", SensitivityFinancial}, {"card_number", SensitivityFinancial}, {"cvv", SensitivityFinancial},
	{"iban", SensitivityFinancial}, {"routing_number", SensitivityFinancial}, {"account_balance", SensitivityFinancial},
	{"salary", SensitivityFinancial}, {"ssn", SensitivityPII}, {"social_security", SensitivityPII},
	{"passport", SensitivityPII}, {"national_id", SensitivityPII}, {"date_of_birth", SensitivityPII},
	{"dob", SensitivityPII}, {"email", SensitivityPII}, {"phone", SensitivityPII}, {"address", SensitivityPII},
	{"full_name", SensitivityPII}, {"first_name", SensitivityPII}, {"last_name", SensitivityPII},
	{"ip_address", SensitivityPII},
}

// ClassifyField returns the sensitivity a field's name suggests, or
// SensitivityNone if nothing in the table matches.
func ClassifyField(field string) Sensitivity {
	lower := strings.ToLower(field)
	for _, rule := range sensitiveFieldNames {
		if strings.Contains(lower, rule.substr) {
			return rule.sensitivity
		}
	}
	return SensitivityNone
}

// ClassifyFields applies ClassifyField across a field list, omitting
// fields with no recognized sensitivity.
func ClassifyFields(fields []string) []FieldSensitivity {
	var out []FieldSensitivity
	for _, f := range fields {
		if s := ClassifyField(f); s != SensitivityNone {
			out = append(out, FieldSensitivity{Field: f, Sensitivity: s})
		}
	}
	return out
}

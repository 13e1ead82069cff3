// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package wallet

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/certen/indysdk/internal/ierr"
)

// Query is a parsed tag query tree: a JSON object whose keys are either
// the combinators $or/$and/$not or tag names, evaluated against a
// record's decrypted tags.
type Query map[string]any

// ParseQuery decodes raw tag-query JSON.
func ParseQuery(raw []byte) (Query, error) {
	if len(raw) == 0 {
		return Query{}, nil
	}
	var q Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, ierr.Wrap(ierr.CodeQueryError, err, "malformed tag query")
	}
	return q, nil
}

// decryptedTag is a tag after the wallet has recovered its plaintext
// name and value, ready for predicate evaluation.
type decryptedTag struct {
	value     string
	plaintext bool
}

func (q Query) match(tags map[string]decryptedTag) (bool, error) {
	return evalObject(map[string]any(q), tags)
}

func evalObject(obj map[string]any, tags map[string]decryptedTag) (bool, error) {
	for key, val := range obj {
		var ok bool
		var err error
		switch key {
		case "$or":
			ok, err = evalOr(val, tags)
		case "$and":
			ok, err = evalAnd(val, tags)
		case "$not":
			ok, err = evalNot(val, tags)
		default:
			ok, err = evalTagPredicate(key, val, tags)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalOr(val any, tags map[string]decryptedTag) (bool, error) {
	clauses, err := asClauseList(val, "$or")
	if err != nil {
		return false, err
	}
	for _, clause := range clauses {
		ok, err := evalObject(clause, tags)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalAnd(val any, tags map[string]decryptedTag) (bool, error) {
	clauses, err := asClauseList(val, "$and")
	if err != nil {
		return false, err
	}
	for _, clause := range clauses {
		ok, err := evalObject(clause, tags)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalNot(val any, tags map[string]decryptedTag) (bool, error) {
	obj, ok := val.(map[string]any)
	if !ok {
		return false, ierr.New(ierr.CodeQueryError, "$not requires a single query object")
	}
	matched, err := evalObject(obj, tags)
	if err != nil {
		return false, err
	}
	return !matched, nil
}

func asClauseList(val any, combinator string) ([]map[string]any, error) {
	arr, ok := val.([]any)
	if !ok {
		return nil, ierr.Newf(ierr.CodeQueryError, "%s requires an array of query objects", combinator)
	}
	clauses := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, ierr.Newf(ierr.CodeQueryError, "%s entries must be query objects", combinator)
		}
		clauses = append(clauses, obj)
	}
	return clauses, nil
}

func evalTagPredicate(name string, val any, tags map[string]decryptedTag) (bool, error) {
	tag, present := tags[name]

	obj, isOperatorForm := val.(map[string]any)
	if !isOperatorForm {
		// Equality is the only predicate permitted on encrypted tags,
		// and the only leaf form that doesn't need an operator object.
		return present && tag.value == toQueryString(val), nil
	}

	if !present {
		return false, nil
	}
	if !tag.plaintext {
		return false, ierr.Newf(ierr.CodeQueryError, "operator predicates are not permitted on encrypted tag %q", name)
	}

	for op, opVal := range obj {
		ok, err := evalOperator(op, opVal, tag.value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalOperator(op string, opVal any, tagValue string) (bool, error) {
	switch op {
	case "$neq":
		return tagValue != toQueryString(opVal), nil
	case "$in":
		arr, ok := opVal.([]any)
		if !ok {
			return false, ierr.New(ierr.CodeQueryError, "$in requires an array")
		}
		for _, item := range arr {
			if tagValue == toQueryString(item) {
				return true, nil
			}
		}
		return false, nil
	case "$regex":
		pattern, ok := opVal.(string)
		if !ok {
			return false, ierr.New(ierr.CodeQueryError, "$regex requires a string pattern")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, ierr.Wrap(ierr.CodeQueryError, err, "invalid $regex pattern")
		}
		return re.MatchString(tagValue), nil
	case "$like":
		pattern, ok := opVal.(string)
		if !ok {
			return false, ierr.New(ierr.CodeQueryError, "$like requires a string pattern")
		}
		return matchLike(tagValue, pattern), nil
	case "$gte", "$gt", "$lte", "$lt":
		return evalComparison(op, tagValue, toQueryString(opVal))
	default:
		return false, ierr.Newf(ierr.CodeQueryError, "unknown tag predicate operator %q", op)
	}
}

func evalComparison(op, lhs, rhs string) (bool, error) {
	lNum, lErr := strconv.ParseFloat(lhs, 64)
	rNum, rErr := strconv.ParseFloat(rhs, 64)

	var cmp int
	if lErr == nil && rErr == nil {
		switch {
		case lNum < rNum:
			cmp = -1
		case lNum > rNum:
			cmp = 1
		default:
			cmp = 0
		}
	} else {
		cmp = strings.Compare(lhs, rhs)
	}

	switch op {
	case "$gte":
		return cmp >= 0, nil
	case "$gt":
		return cmp > 0, nil
	case "$lte":
		return cmp <= 0, nil
	case "$lt":
		return cmp < 0, nil
	}
	return false, fmt.Errorf("unreachable comparison operator %q", op)
}

// matchLike implements SQL-style LIKE matching: % matches any run of
// characters, _ matches exactly one.
func matchLike(value, pattern string) bool {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func toQueryString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package wallet

import "testing"

func tagSet(pairs ...string) map[string]decryptedTag {
	tags := make(map[string]decryptedTag)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		tags[name] = decryptedTag{value: value, plaintext: name[0] == '~'}
	}
	return tags
}

func mustParseQuery(t *testing.T, raw string) Query {
	t.Helper()
	q, err := ParseQuery([]byte(raw))
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	return q
}

func TestQueryEqualityLeaf(t *testing.T) {
	q := mustParseQuery(t, `{"name":"Alex"}`)
	tags := tagSet("name", "Alex")

	ok, err := q.match(tags)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = q.match(tagSet("name", "Not Alex"))
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestQueryAndOr(t *testing.T) {
	q := mustParseQuery(t, `{"$and":[{"~age":{"$gte":"18"}},{"$or":[{"name":"Alex"},{"name":"Sam"}]}]}`)

	ok, err := q.match(tagSet("~age", "28", "name", "Alex"))
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = q.match(tagSet("~age", "10", "name", "Alex"))
	if err != nil || ok {
		t.Fatalf("expected age predicate to reject, got ok=%v err=%v", ok, err)
	}

	ok, err = q.match(tagSet("~age", "28", "name", "Someone Else"))
	if err != nil || ok {
		t.Fatalf("expected name predicate to reject, got ok=%v err=%v", ok, err)
	}
}

func TestQueryNot(t *testing.T) {
	q := mustParseQuery(t, `{"$not":{"name":"Alex"}}`)

	ok, err := q.match(tagSet("name", "Alex"))
	if err != nil || ok {
		t.Fatalf("expected $not to reject matching name, got ok=%v err=%v", ok, err)
	}
	ok, err = q.match(tagSet("name", "Sam"))
	if err != nil || !ok {
		t.Fatalf("expected $not to accept non-matching name, got ok=%v err=%v", ok, err)
	}
}

func TestQueryOperatorsRejectEncryptedTags(t *testing.T) {
	q := mustParseQuery(t, `{"age":{"$gte":"18"}}`)
	_, err := q.match(tagSet("age", "28"))
	if err == nil {
		t.Fatal("expected an error applying an operator predicate to an encrypted tag")
	}
}

func TestQueryLikeAndIn(t *testing.T) {
	like := mustParseQuery(t, `{"~name":{"$like":"Al_x"}}`)
	ok, err := like.match(tagSet("~name", "Alex"))
	if err != nil || !ok {
		t.Fatalf("expected $like match, got ok=%v err=%v", ok, err)
	}

	in := mustParseQuery(t, `{"~status":{"$in":["active","pending"]}}`)
	ok, err = in.match(tagSet("~status", "pending"))
	if err != nil || !ok {
		t.Fatalf("expected $in match, got ok=%v err=%v", ok, err)
	}
	ok, err = in.match(tagSet("~status", "closed"))
	if err != nil || ok {
		t.Fatalf("expected $in to reject, got ok=%v err=%v", ok, err)
	}
}

func TestQueryNumericComparison(t *testing.T) {
	q := mustParseQuery(t, `{"~height":{"$gt":"100","$lt":"200"}}`)
	ok, err := q.match(tagSet("~height", "175"))
	if err != nil || !ok {
		t.Fatalf("expected numeric range match, got ok=%v err=%v", ok, err)
	}
	ok, err = q.match(tagSet("~height", "250"))
	if err != nil || ok {
		t.Fatalf("expected numeric range to reject, got ok=%v err=%v", ok, err)
	}
}

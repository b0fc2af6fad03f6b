package gorm

import (
	"reflect"
	"strings"
	"testing"
)

// Username and email uniqueness must be case-insensitive. A plain unique
// index on the raw column would let "Alice@x.com" and "alice@x.com" coexist
// on Postgres, so the indexes have to cover the lower() expression and the
// model tags must not declare their own column-level unique indexes.
func TestUniqueIndexesAreCaseInsensitive(t *testing.T) {
	wantExprs := []string{"lower(username)", "lower(email)"}
	for _, expr := range wantExprs {
		found := false
		for _, stmt := range caseInsensitiveUniqueIndexes {
			if !strings.HasPrefix(stmt, "CREATE UNIQUE INDEX") {
				t.Fatalf("index statement is not unique: %q", stmt)
			}
			if !strings.Contains(stmt, "ON users ") {
				t.Fatalf("index statement targets the wrong table: %q", stmt)
			}
			if strings.Contains(stmt, expr) {
				found = true
			}
		}
		if !found {
			t.Errorf("no unique index statement covers %s", expr)
		}
	}
}

func TestModelDoesNotDuplicateCaseSensitiveIndexes(t *testing.T) {
	typ := reflect.TypeOf(UserModel{})
	for _, name := range []string{"Username", "Email"} {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("UserModel has no field %s", name)
		}
		if strings.Contains(field.Tag.Get("gorm"), "uniqueIndex") {
			t.Errorf("%s declares a case-sensitive unique index; uniqueness belongs to the lower() index", name)
		}
	}
}

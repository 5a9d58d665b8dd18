package internal

import "testing"

// TestFlattenNestedAndArray tests that a nested map with an array is flattened correctly.
func TestFlattenNestedAndArray(t *testing.T) {
	input := map[string]interface{}{
		"head_commit": map[string]interface{}{
			"id": "abc",
			"added": []interface{}{
				"README.md",
				map[string]interface{}{"path": "main.go"},
			},
		},
	}

	flat := Flatten(input)
	if flat["head_commit.id"] != "abc" {
		t.Fatalf("expected head_commit.id to be abc")
	}
	if _, ok := flat["head_commit.added"]; !ok {
		t.Fatalf("expected head_commit.added to exist")
	}
	if flat["head_commit.added[0]"] != "README.md" {
		t.Fatalf("expected added[0] to be README.md")
	}
	if flat["head_commit.added[1].path"] != "main.go" {
		t.Fatalf("expected added[1].path to be main.go")
	}
}

// TestFlattenJSONNonObject tests that non-object payloads flatten to nothing.
func TestFlattenJSONNonObject(t *testing.T) {
	if got := FlattenJSON([]byte(`[1,2]`)); len(got) != 0 {
		t.Fatalf("expected empty map for array, got %v", got)
	}
	if got := FlattenJSON([]byte(`not json`)); len(got) != 0 {
		t.Fatalf("expected empty map for invalid json, got %v", got)
	}
	got := FlattenJSON([]byte(`{"repository":{"full_name":"acme/api"}}`))
	if got["repository.full_name"] != "acme/api" {
		t.Fatalf("expected repository.full_name, got %v", got)
	}
}

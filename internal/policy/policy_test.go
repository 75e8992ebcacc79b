package policy

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	metadata "github.com/hanpama/recordgql/internal/metadata"
)

func taskFields() []*metadata.Field {
	return []*metadata.Field{
		metadata.NewScalarField("task.id", "id"),
		metadata.NewScalarField("task.title", "title"),
		metadata.NewRelationField("task.assignee", "assignee", "person", metadata.One),
		metadata.NewScalarField("task.dueAt", "dueAt"),
	}
}

func names(fields []*metadata.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestApply(t *testing.T) {
	all := taskFields()
	table := Table{{Object: "Task", Fields: []string{"assignee"}}}

	t.Run("forced field appended when hidden", func(t *testing.T) {
		requested := []*metadata.Field{all[1], all[3]}
		got := table.Apply("task", requested, all)
		if diff := cmp.Diff([]string{"title", "dueAt", "assignee"}, names(got)); diff != "" {
			t.Fatalf("fields mismatch (-want +got):\n%s", diff)
		}
		require.Len(t, requested, 2, "requested must not be modified")
	})

	t.Run("already requested is not duplicated", func(t *testing.T) {
		got := table.Apply("TASK", []*metadata.Field{all[2], all[1]}, all)
		if diff := cmp.Diff([]string{"assignee", "title"}, names(got)); diff != "" {
			t.Fatalf("fields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("forced field missing from object is ignored", func(t *testing.T) {
		got := Table{{Object: "task", Fields: []string{"reviewer", "assignee", "assignee"}}}.Apply("task", nil, all)
		require.Equal(t, []string{"assignee"}, names(got))
	})

	t.Run("other objects untouched", func(t *testing.T) {
		got := table.Apply("note", []*metadata.Field{all[1]}, all)
		require.Equal(t, []string{"title"}, names(got))
	})

	t.Run("zero table", func(t *testing.T) {
		var empty Table
		require.Empty(t, empty.Apply("task", nil, all))
	})
}

func TestForcedMergesEntries(t *testing.T) {
	table := Table{
		{Object: "task", Fields: []string{"assignee"}},
		{Object: "Task", Fields: []string{"createdBy"}},
	}
	require.Equal(t, []string{"assignee", "createdBy"}, table.Forced("task"))
	require.Nil(t, table.Forced("person"))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, []string{"assignee"}, cfg.ForcedInclusion.Forced("task"))
	want := []Attachment{
		{Field: "noteTargets", Object: "noteTarget"},
		{Field: "taskTargets", Object: "taskTarget"},
	}
	if diff := cmp.Diff(want, cfg.AlwaysInclude); diff != "" {
		t.Fatalf("attachments mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile("testdata/policy.yaml")
	require.NoError(t, err)
	want := &Config{
		ForcedInclusion: Table{
			{Object: "Task", Fields: []string{"assignee"}},
			{Object: "opportunity", Fields: []string{"pointOfContact", "company"}},
		},
		AlwaysInclude: []Attachment{{Field: "noteTargets", Object: "noteTarget"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "forcedInclusion:\n  - object: task\n    field: [assignee]\n",
		"missing object": "forcedInclusion:\n  - fields: [assignee]\n",
		"empty fields":   "forcedInclusion:\n  - object: task\n",
		"bad attachment": "alwaysInclude:\n  - field: noteTargets\n",
		"dup attachment": "alwaysInclude:\n  - {field: a, object: x}\n  - {field: a, object: y}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(src))
			require.Error(t, err)
		})
	}

	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, cfg.ForcedInclusion)
}

package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	events "github.com/hanpama/recordgql/internal/events"
	metadata "github.com/hanpama/recordgql/internal/metadata"
	policy "github.com/hanpama/recordgql/internal/policy"
)

var taskPolicy = policy.Table{{Object: "Task", Fields: []string{"assignee"}}}

func TestAssembleHiddenAssigneeIsForced(t *testing.T) {
	a := NewAssembler(crmSnapshot(), WithPolicy(taskPolicy))
	got, err := a.Assemble(context.Background(), "task", Request{
		VisibleFieldIDs: []string{"task.title", "task.dueAt"},
		Depth:           DefaultDepth,
	})
	require.NoError(t, err)

	want := timestamps(Selection{
		"id":    Leaf(),
		"title": Leaf(),
		"dueAt": Leaf(),
		"assignee": Nested(timestamps(Selection{
			"id":   Leaf(),
			"name": Leaf(),
		})),
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleWithoutPolicyOmitsHiddenRelation(t *testing.T) {
	a := NewAssembler(crmSnapshot())
	got, err := a.Assemble(context.Background(), "task", Request{
		VisibleFieldIDs: []string{"task.title"},
		Depth:           DefaultDepth,
	})
	require.NoError(t, err)
	require.NotContains(t, got, "assignee")
}

func TestAssembleCyclicRelationStopsAtDepth(t *testing.T) {
	a := NewAssembler(crmSnapshot())
	got, err := a.Assemble(context.Background(), "contact", Request{
		VisibleFieldIDs: []string{"contact.company"},
		Depth:           1,
	})
	require.NoError(t, err)

	want := timestamps(Selection{
		"id":       Leaf(),
		"email":    Leaf(),
		"position": Leaf(),
		"company": Nested(timestamps(Selection{
			"id":         Leaf(),
			"name":       Leaf(),
			"logoUrl":    Leaf(),
			"domainName": Leaf(),
			"people":     Leaf(),
		})),
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestDepthZeroKeepsRelationsAsLeaves(t *testing.T) {
	reg := crmSnapshot()
	company, _ := reg.Lookup("company")
	got := Build(context.Background(), reg, company, company.Fields, 0)

	for _, f := range company.Fields {
		node, ok := got[f.Name]
		require.True(t, ok, "field %s missing", f.Name)
		require.True(t, node.IsLeaf(), "field %s not a leaf", f.Name)
	}
	require.Zero(t, got.Depth())

	a := NewAssembler(reg, WithPolicy(taskPolicy))
	sel, err := a.Assemble(context.Background(), "task", Request{Depth: 0})
	require.NoError(t, err)
	require.Contains(t, sel, "assignee")
	require.True(t, sel["assignee"].IsLeaf())
}

func chainSnapshot() *metadata.Snapshot {
	// a -> b -> c -> d, plus loop.self -> loop
	d := metadata.NewObject("d", "d", "").AddField(metadata.NewScalarField("d.id", "id"))
	c := metadata.NewObject("c", "c", "").AddField(metadata.NewRelationField("c.d", "d", "d", metadata.One))
	b := metadata.NewObject("b", "b", "").AddField(metadata.NewRelationField("b.c", "c", "c", metadata.One))
	a := metadata.NewObject("a", "a", "").AddField(metadata.NewRelationField("a.b", "b", "b", metadata.One))
	loop := metadata.NewObject("loop", "loop", "").
		AddField(metadata.NewRelationField("loop.self", "self", "loop", metadata.One)).
		AddField(metadata.NewRelationField("loop.other", "other", "mirror", metadata.Many))
	mirror := metadata.NewObject("mirror", "mirror", "").
		AddField(metadata.NewRelationField("mirror.loop", "loop", "loop", metadata.One))
	return metadata.MustSnapshot(a, b, c, d, loop, mirror)
}

func TestNestingDepthIsBounded(t *testing.T) {
	a := NewAssembler(chainSnapshot())
	for depth := 0; depth <= 6; depth++ {
		t.Run(fmt.Sprintf("depth=%d", depth), func(t *testing.T) {
			chain, err := a.Assemble(context.Background(), "a", Request{VisibleFieldIDs: []string{"a.b"}, Depth: depth})
			require.NoError(t, err)
			require.Equal(t, min(depth, 3), chain.Depth())

			cyclic, err := a.Assemble(context.Background(), "loop", Request{
				VisibleFieldIDs: []string{"loop.self", "loop.other"},
				Depth:           depth,
			})
			require.NoError(t, err)
			require.Equal(t, depth, cyclic.Depth())
		})
	}
}

func TestNestedSelectionsAreNeverEmpty(t *testing.T) {
	a := NewAssembler(chainSnapshot())
	sel, err := a.Assemble(context.Background(), "loop", Request{VisibleFieldIDs: []string{"loop.self", "loop.other"}, Depth: 3})
	require.NoError(t, err)

	var walk func(path string, s Selection)
	walk = func(path string, s Selection) {
		require.NotEmpty(t, s, "empty selection at %s", path)
		for name, n := range s {
			if !n.IsLeaf() {
				walk(path+"."+name, n.Fields)
			}
		}
	}
	walk("loop", sel)
}

func TestSystemFieldsAlwaysPresent(t *testing.T) {
	reg := crmSnapshot()
	a := NewAssembler(reg)
	for _, obj := range reg.Objects() {
		for _, req := range []Request{{}, {VisibleFieldIDs: []string{"unknown"}, Depth: 2}} {
			sel, err := a.Assemble(context.Background(), obj.ID, req)
			require.NoError(t, err)
			for _, name := range append([]string{"id"}, SystemFields...) {
				require.Contains(t, sel, name, "%s lacks %s", obj.NameSingular, name)
			}
		}
	}
}

func TestAssembleIsOrderIndependent(t *testing.T) {
	reg := crmSnapshot()
	a := NewAssembler(reg, WithPolicy(taskPolicy), WithAttachment("noteTargets", "noteTarget"))
	ids := []string{"task.title", "task.dueAt", "task.assignee", "task.id", "task.createdAt"}

	want, err := a.Assemble(context.Background(), "task", Request{VisibleFieldIDs: ids, Depth: 2})
	require.NoError(t, err)

	rnd := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		shuffled := append([]string(nil), ids...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := a.Assemble(context.Background(), "task", Request{VisibleFieldIDs: shuffled, Depth: 2})
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("order %v changed projection (-want +got):\n%s", shuffled, diff)
		}
	}
}

func TestAssembleUnknownObject(t *testing.T) {
	rec := recordEvents(t)
	a := NewAssembler(crmSnapshot())
	sel, err := a.Assemble(context.Background(), "invoice", Request{Depth: 1})
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.ErrorContains(t, err, "invoice")
	require.Nil(t, sel)

	require.Len(t, rec.finished, 1)
	require.ErrorIs(t, rec.finished[0].Err, ErrObjectNotFound)

	_, err = NewAssembler(nil).Assemble(context.Background(), "task", Request{})
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestAssembleSkipsStaleVisibleFields(t *testing.T) {
	rec := recordEvents(t)
	a := NewAssembler(crmSnapshot())
	got, err := a.Assemble(context.Background(), "task", Request{
		VisibleFieldIDs:   []string{"task.removed", "task.dueAt", "task.dueAt"},
		AdditionalFieldID: "task.gone",
		Depth:             1,
	})
	require.NoError(t, err)
	require.Contains(t, got, "dueAt")

	want := []events.VisibleFieldSkipped{
		{Object: "task", FieldID: "task.removed"},
		{Object: "task", FieldID: "task.gone"},
	}
	if diff := cmp.Diff(want, rec.skipped); diff != "" {
		t.Fatalf("skipped events mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rec.started, 1)
	require.Equal(t, events.ProjectionStart{Object: "task", Depth: 1, Requested: 3}, rec.started[0])
	require.Len(t, rec.finished, 1)
	require.NoError(t, rec.finished[0].Err)
	require.Equal(t, len(got), rec.finished[0].Fields)
	require.Equal(t, got.Size(), rec.finished[0].Entries)
}

func TestUnresolvedRelationDegradesToLeaf(t *testing.T) {
	rec := recordEvents(t)
	orphan := metadata.NewObject("deal", "deal", "").
		AddField(metadata.NewScalarField("deal.id", "id")).
		AddField(metadata.NewRelationField("deal.owner", "owner", "workspaceMember", metadata.One)).
		AddField(metadata.NewRelationField("deal.broken", "broken", "", metadata.One))
	a := NewAssembler(metadata.MustSnapshot(orphan))

	got, err := a.Assemble(context.Background(), "deal", Request{
		VisibleFieldIDs: []string{"deal.owner", "deal.broken"},
		Depth:           1,
	})
	require.NoError(t, err)
	want := timestamps(Selection{"id": Leaf(), "owner": Leaf(), "broken": Leaf()})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}

	wantEvents := []events.RelationDegraded{
		{Object: "deal", Field: "owner", Target: "workspaceMember", Reason: "target object not found"},
		{Object: "deal", Field: "broken", Target: "", Reason: "relation has no target"},
	}
	if diff := cmp.Diff(wantEvents, rec.degraded); diff != "" {
		t.Fatalf("degraded events mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleIdentifiersAndAdditionalField(t *testing.T) {
	a := NewAssembler(crmSnapshot())
	got, err := a.Assemble(context.Background(), "companies", Request{AdditionalFieldID: "company.people", Depth: 1})
	require.NoError(t, err)

	want := timestamps(Selection{
		"id":      Leaf(),
		"name":    Leaf(),
		"logoUrl": Leaf(),
		"people":  Leaf(),
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleAttachments(t *testing.T) {
	rec := recordEvents(t)
	a := NewAssembler(crmSnapshot(),
		WithAttachment("noteTargets", "noteTarget"),
		WithAttachments(policy.Attachment{Field: "taskTargets", Object: "taskTarget"}),
	)
	got, err := a.Assemble(context.Background(), "task", Request{Depth: 1})
	require.NoError(t, err)

	want := timestamps(Selection{
		"id":    Leaf(),
		"title": Leaf(),
		"noteTargets": Nested(timestamps(Selection{
			"id":   Leaf(),
			"note": Nested(timestamps(Selection{"id": Leaf(), "title": Leaf()})),
			"task": Nested(timestamps(Selection{
				"id":       Leaf(),
				"title":    Leaf(),
				"assignee": Leaf(),
				"dueAt":    Leaf(),
			})),
		})),
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []events.RelationDegraded{{
		Object: "task", Field: "taskTargets", Target: "taskTarget", Reason: "attachment object not found",
	}}, rec.degraded)
}

func TestWithConfig(t *testing.T) {
	a := NewAssembler(crmSnapshot(), WithConfig(policy.Default()), WithConfig(nil))
	got, err := a.Assemble(context.Background(), "task", Request{Depth: 1})
	require.NoError(t, err)
	require.Contains(t, got, "assignee")
	require.Contains(t, got, "noteTargets")
	require.NotContains(t, got, "taskTargets")
}

func TestSelectionJSON(t *testing.T) {
	sel := Selection{
		"id":       Leaf(),
		"assignee": Nested(Selection{"id": Leaf(), "name": Leaf()}),
	}
	data, err := json.Marshal(sel)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":true,"assignee":{"id":true,"name":true}}`, string(data))

	var back Selection
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(sel, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	require.Error(t, json.Unmarshal([]byte(`{"id":false}`), &back))
	require.NoError(t, json.Unmarshal([]byte(`{"empty":{}}`), &back))
	require.True(t, back["empty"].IsLeaf())
}

func TestSelectionHelpers(t *testing.T) {
	sel := Selection{"b": Leaf(), "a": Nested(Selection{"x": Nested(Selection{"y": Leaf()})})}
	require.Equal(t, []string{"a", "b"}, sel.Keys())
	require.Equal(t, 2, sel.Depth())
	require.Equal(t, 4, sel.Size())
	require.True(t, Nested(nil).IsLeaf())

	sel.Merge(Selection{"a": Leaf()})
	require.True(t, sel["a"].IsLeaf())
}

func TestStoreAssemblerReadsSnapshotPerCall(t *testing.T) {
	st := metadata.NewStore(crmSnapshot())
	a := NewStoreAssembler(st, WithPolicy(taskPolicy))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sel, err := a.Assemble(context.Background(), "task", Request{Depth: 1})
			if err != nil {
				t.Error(err)
				return
			}
			if _, ok := sel["assignee"]; !ok {
				t.Error("assignee missing")
			}
		}()
	}
	wg.Wait()

	st.Replace(metadata.MustSnapshot())
	_, err := a.Assemble(context.Background(), "task", Request{Depth: 1})
	require.ErrorIs(t, err, ErrObjectNotFound)
}

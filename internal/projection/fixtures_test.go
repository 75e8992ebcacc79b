package projection

import (
	"context"
	"sync"
	"testing"

	eventbus "github.com/hanpama/recordgql/internal/eventbus"
	events "github.com/hanpama/recordgql/internal/events"
	metadata "github.com/hanpama/recordgql/internal/metadata"
)

func withTimestamps(o *metadata.Object) *metadata.Object {
	for _, name := range SystemFields {
		o.AddField(metadata.NewScalarField(o.ID+"."+name, name).System())
	}
	return o
}

// crmSnapshot: task -> person; person <-> company; noteTarget -> note.
func crmSnapshot() *metadata.Snapshot {
	person := withTimestamps(metadata.NewObject("person", "person", "people").
		AddField(metadata.NewScalarField("person.id", "id").System()).
		AddField(metadata.NewScalarField("person.name", "name")).
		SetLabelIdentifier("person.name"))

	task := withTimestamps(metadata.NewObject("task", "task", "tasks").
		AddField(metadata.NewScalarField("task.id", "id").System()).
		AddField(metadata.NewScalarField("task.title", "title")).
		AddField(metadata.NewRelationField("task.assignee", "assignee", "person", metadata.One)).
		AddField(metadata.NewScalarField("task.dueAt", "dueAt")).
		SetLabelIdentifier("task.title"))

	company := metadata.NewObject("company", "company", "companies").
		AddField(metadata.NewScalarField("company.id", "id")).
		AddField(metadata.NewScalarField("company.name", "name")).
		AddField(metadata.NewCompositeField("company.domainName", "domainName", "primaryLinkUrl")).
		AddField(metadata.NewRelationField("company.people", "people", "contact", metadata.Many)).
		AddField(metadata.NewScalarField("company.logo", "logoUrl")).
		SetLabelIdentifier("company.name").
		SetImageIdentifier("company.logo")

	contact := metadata.NewObject("contact", "contact", "contacts").
		AddField(metadata.NewScalarField("contact.id", "id")).
		AddField(metadata.NewScalarField("contact.email", "email")).
		AddField(metadata.NewEnumField("contact.stage", "stage")).
		AddField(metadata.NewRelationField("contact.company", "company", "company", metadata.One)).
		AddField(metadata.NewScalarField("contact.position", "position")).
		SetLabelIdentifier("contact.email")

	note := metadata.NewObject("note", "note", "notes").
		AddField(metadata.NewScalarField("note.id", "id")).
		AddField(metadata.NewScalarField("note.title", "title")).
		SetLabelIdentifier("note.title")

	noteTarget := metadata.NewObject("noteTarget", "noteTarget", "noteTargets").
		AddField(metadata.NewScalarField("noteTarget.id", "id")).
		AddField(metadata.NewRelationField("noteTarget.note", "note", "note", metadata.One)).
		AddField(metadata.NewRelationField("noteTarget.task", "task", "task", metadata.One))

	return metadata.MustSnapshot(person, task, company, contact, note, noteTarget)
}

// recorder captures events published on a fresh global bus.
type recorder struct {
	mu       sync.Mutex
	degraded []events.RelationDegraded
	skipped  []events.VisibleFieldSkipped
	started  []events.ProjectionStart
	finished []events.ProjectionFinish
}

func recordEvents(t *testing.T) *recorder {
	t.Helper()
	prev := eventbus.Current()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(prev) })

	r := &recorder{}
	eventbus.Subscribe(func(_ context.Context, e events.RelationDegraded) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.degraded = append(r.degraded, e)
	})
	eventbus.Subscribe(func(_ context.Context, e events.VisibleFieldSkipped) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.skipped = append(r.skipped, e)
	})
	eventbus.Subscribe(func(_ context.Context, e events.ProjectionStart) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.started = append(r.started, e)
	})
	eventbus.Subscribe(func(_ context.Context, e events.ProjectionFinish) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.finished = append(r.finished, e)
	})
	return r
}

func timestamps(extra Selection) Selection {
	out := Selection{"createdAt": Leaf(), "updatedAt": Leaf(), "deletedAt": Leaf()}
	return out.Merge(extra)
}

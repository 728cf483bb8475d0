package domain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Clients ")
	require.NoError(t, err)
	assert.Equal(t, CategoryClients, c)

	_, err = ParseCategory("mappers")
	require.Error(t, err)
}

func TestEntityKeys(t *testing.T) {
	assert.Equal(t, "admin", Role{Name: "admin"}.Key())
	assert.Equal(t, "web", Client{ClientID: "web"}.Key())
	assert.Equal(t, "/ops/oncall", Group{Path: "/ops/oncall", Name: "oncall"}.Key())
	assert.Equal(t, "alice", User{Username: "alice"}.Key())
}

func TestFieldSet_AbsentScalarsAreOmitted(t *testing.T) {
	fs := User{Username: "alice", Email: Ptr("")}.Fields()

	v, ok := fs.Scalars[FieldEmail]
	require.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = fs.Scalars[FieldFirstName]
	assert.False(t, ok, "nil pointer must stay absent")
}

func TestFieldSet_ClientScopeMappers(t *testing.T) {
	fs := Client{
		ClientID:     "web",
		ScopeMappers: map[string][]string{"profile": {"full name"}, "email": nil},
	}.Fields()

	assert.Equal(t, []string{"full name"}, fs.Sets[MapperField("profile")])
	assert.Equal(t, []string{}, fs.Sets[MapperField("email")])
}

func TestFieldSet_FlattensAttributes(t *testing.T) {
	fs := Group{
		Path:        "/ops",
		Attributes:  map[string][]string{"tier": {"gold", "silver"}, "empty": nil},
		ClientRoles: map[string][]string{"web": {"viewer"}},
	}.Fields()

	assert.Equal(t, []string{"empty=", "tier=gold", "tier=silver"}, fs.Sets[FieldAttributes])
	assert.Equal(t, []string{"web:viewer"}, fs.Sets[FieldClientRoles])
}

func TestSelection_Keys(t *testing.T) {
	sel := Selection{"b": true, "a": true, "c": false}
	assert.Equal(t, []string{"a", "b"}, sel.Keys())
}

func TestTagSet_Sorted(t *testing.T) {
	s := NewTagSet("t2", "t1", "t2")
	assert.Equal(t, []string{"t1", "t2"}, s.Sorted())
	assert.True(t, s.Has("t1"))
	assert.False(t, s.Has("t3"))
}

func TestEntitiesSyncedPayload_ToJSON(t *testing.T) {
	payload := EntitiesSyncedPayload{
		SourceClusterID:      "c-1",
		DestinationClusterID: "c-2",
		Category:             CategoryRoles,
		Synced:               []string{"admin"},
		Failed:               []string{"viewer"},
	}

	data, err := payload.ToJSON()
	require.NoError(t, err)

	var decoded EntitiesSyncedPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, payload, decoded)
}

func TestEventDispatcher_RunsEveryHandler(t *testing.T) {
	d := NewEventDispatcher()
	var calls []string
	d.Register(EventClusterTagsChanged, func(_ context.Context, _ *DomainEvent) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Register(EventClusterTagsChanged, func(_ context.Context, _ *DomainEvent) error {
		calls = append(calls, "second")
		return nil
	})

	err := d.Dispatch(context.Background(), &DomainEvent{EventID: "e-1", EventType: EventClusterTagsChanged})
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)

	require.NoError(t, d.Dispatch(context.Background(), &DomainEvent{EventType: EventEntitiesSynced}))
}

func TestEventDispatcher_JoinsFailuresAndRecoversPanics(t *testing.T) {
	d := NewEventDispatcher()
	boom := errors.New("boom")
	ran := false
	d.Register(EventEntitiesSynced, func(context.Context, *DomainEvent) error { return boom })
	d.Register(EventEntitiesSynced, func(context.Context, *DomainEvent) error { panic("observer bug") })
	d.Register(EventEntitiesSynced, func(context.Context, *DomainEvent) error {
		ran = true
		return nil
	})

	err := d.Dispatch(context.Background(), &DomainEvent{EventID: "e-2", EventType: EventEntitiesSynced})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "observer panicked")
	assert.True(t, ran)

	var nilDispatcher *EventDispatcher
	assert.NoError(t, nilDispatcher.Dispatch(context.Background(), &DomainEvent{}))
}

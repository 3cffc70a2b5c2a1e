// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package graphql

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/database"
	"github.com/aniwatch/aniwatch/internal/graphql/authn"
	"github.com/aniwatch/aniwatch/internal/graphql/tenancy"
	"github.com/aniwatch/aniwatch/internal/testdb"
)

type testEnv struct {
	db       *database.DB
	executor *Executor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(testdb.PathFromTemplate(t, "graphql", "graphql.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		_, err := db.ExecContext(ctx, `INSERT INTO subscriber (display_name) VALUES (?)`, name)
		require.NoError(t, err)
	}

	guard, err := tenancy.NewGuard()
	require.NoError(t, err)
	schema, err := LoadSchema()
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		executor: NewExecutor(schema, NewResolver(db, guard)),
	}
}

func asSubscriber(sid int64) context.Context {
	return authn.WithIdentity(context.Background(), &authn.Identity{SubscriberID: sid, Subject: "test"})
}

func decodeData(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestLoadSchema(t *testing.T) {
	schema, err := LoadSchema()
	require.NoError(t, err)

	// The entity named Subscription must be a plain object type, not the
	// subscription root: the SDL declares the roots explicitly.
	assert.Nil(t, schema.Subscription)
	require.NotNil(t, schema.Types["Subscription"])
}

func TestCreateInjectsSubscriberID(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(1), `
		mutation {
			subscriptionCreate(data: {displayName: "spring", category: "mikan_bangumi", sourceUrl: "/RSS/Bangumi?bangumiId=3288"}) {
				id subscriberId displayName category enabled
			}
		}`, "", nil)
	require.Empty(t, res.Errors)

	data := decodeData(t, res.Data)
	row := data["subscriptionCreate"].(map[string]any)
	assert.Equal(t, float64(1), row["subscriberId"])
	assert.Equal(t, "spring", row["displayName"])
	assert.Equal(t, "mikan_bangumi", row["category"])
	assert.Equal(t, true, row["enabled"])
}

func TestCreateRejectsForeignSubscriberID(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(1), `
		mutation {
			subscriptionCreate(data: {subscriberId: 2, displayName: "x", category: "manual", sourceUrl: "u"}) { id }
		}`, "", nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "forbidden", res.Errors[0].Message)
	assert.Equal(t, "auth", res.Errors[0].Extensions["code"])
}

func TestUnauthenticatedMutationTaggedAuth(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(context.Background(), `
		mutation { downloaderCreate(data: {kind: "qbittorrent", endpoint: "http://x", username: "u", password: "p", savePath: "/d"}) { id } }`, "", nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "auth", res.Errors[0].Extensions["code"])
}

func TestTenantIsolationOnList(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(1), `
		mutation { subscriptionCreate(data: {displayName: "mine", category: "manual", sourceUrl: "u"}) { id } }`, "", nil)
	require.Empty(t, res.Errors)

	// Subscriber 2 sees nothing.
	res = env.executor.Execute(asSubscriber(2), `query { subscriptions { id displayName } }`, "", nil)
	require.Empty(t, res.Errors)
	assert.Empty(t, decodeData(t, res.Data)["subscriptions"])

	// Subscriber 1 sees the row.
	res = env.executor.Execute(asSubscriber(1), `query { subscriptions { id displayName } }`, "", nil)
	require.Empty(t, res.Errors)
	assert.Len(t, decodeData(t, res.Data)["subscriptions"], 1)

	// An explicit foreign subscriberId in where is rejected outright.
	res = env.executor.Execute(asSubscriber(2), `query { subscriptions(where: {subscriberId: 1}) { id } }`, "", nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "auth", res.Errors[0].Extensions["code"])

	// A matching subscriberId in where is a no-op.
	res = env.executor.Execute(asSubscriber(1), `query { subscriptions(where: {subscriberId: 1}) { id } }`, "", nil)
	require.Empty(t, res.Errors)
	assert.Len(t, decodeData(t, res.Data)["subscriptions"], 1)
}

func TestUpdateScopedToTenant(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(1), `
		mutation { subscriptionCreate(data: {displayName: "orig", category: "manual", sourceUrl: "u"}) { id } }`, "", nil)
	require.Empty(t, res.Errors)

	// Subscriber 2's update matches nothing.
	res = env.executor.Execute(asSubscriber(2), `
		mutation { subscriptionUpdate(data: {displayName: "stolen"}, where: {displayName: "orig"}) { id displayName } }`, "", nil)
	require.Empty(t, res.Errors)
	assert.Empty(t, decodeData(t, res.Data)["subscriptionUpdate"])

	// Subscriber 1's update lands and returns the updated row.
	res = env.executor.Execute(asSubscriber(1), `
		mutation { subscriptionUpdate(data: {displayName: "renamed"}, where: {displayName: "orig"}) { id displayName } }`, "", nil)
	require.Empty(t, res.Errors)
	updated := decodeData(t, res.Data)["subscriptionUpdate"].([]any)
	require.Len(t, updated, 1)
	assert.Equal(t, "renamed", updated[0].(map[string]any)["displayName"])
}

func TestDeleteReturnsAffectedCount(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(1), `
		mutation { downloaderCreate(data: {kind: "qbittorrent", endpoint: "http://x", username: "u", password: "p", savePath: "/d"}) { id } }`, "", nil)
	require.Empty(t, res.Errors)

	res = env.executor.Execute(asSubscriber(2), `mutation { downloaderDelete(where: {kind: "qbittorrent"}) }`, "", nil)
	require.Empty(t, res.Errors)
	assert.Equal(t, float64(0), decodeData(t, res.Data)["downloaderDelete"])

	res = env.executor.Execute(asSubscriber(1), `mutation { downloaderDelete(where: {kind: "qbittorrent"}) }`, "", nil)
	require.Empty(t, res.Errors)
	assert.Equal(t, float64(1), decodeData(t, res.Data)["downloaderDelete"])
}

func TestListOrderingAndPagination(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(1), `
		mutation {
			subscriptionCreateBatch(data: [
				{displayName: "a", category: "manual", sourceUrl: "u1"},
				{displayName: "b", category: "manual", sourceUrl: "u2"},
				{displayName: "c", category: "manual", sourceUrl: "u3"}
			]) { id }
		}`, "", nil)
	require.Empty(t, res.Errors)

	res = env.executor.Execute(asSubscriber(1), `
		query { subscriptions(orderBy: [{field: "displayName", desc: true}], limit: 2, offset: 1) { displayName } }`, "", nil)
	require.Empty(t, res.Errors)

	rows := decodeData(t, res.Data)["subscriptions"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].(map[string]any)["displayName"])
	assert.Equal(t, "a", rows[1].(map[string]any)["displayName"])
}

func TestMeAndVariables(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(2), `query { me { id displayName } }`, "", nil)
	require.Empty(t, res.Errors)
	me := decodeData(t, res.Data)["me"].(map[string]any)
	assert.Equal(t, float64(2), me["id"])
	assert.Equal(t, "bob", me["displayName"])

	res = env.executor.Execute(asSubscriber(1), `
		query List($limit: Int) { subscriptions(limit: $limit) { id } }`, "List", map[string]any{"limit": 10})
	require.Empty(t, res.Errors)
}

func TestValidationRejectsUnknownField(t *testing.T) {
	env := newTestEnv(t)

	res := env.executor.Execute(asSubscriber(1), `query { subscriptions { nope } }`, "", nil)
	require.NotEmpty(t, res.Errors)
	assert.Nil(t, res.Data)
}

func TestJoinRowDuplicateSurfacesConstraint(t *testing.T) {
	env := newTestEnv(t)

	ctx := context.Background()
	_, err := env.db.ExecContext(ctx, `
		INSERT INTO subscription (subscriber_id, display_name, category, source_url, enabled) VALUES (1, 's', 'manual', 'u', 1)`)
	require.NoError(t, err)
	_, err = env.db.ExecContext(ctx, `
		INSERT INTO bangumi (subscriber_id, mikan_bangumi_id, display_name, raw_name, season) VALUES (1, '3288', 'n', 'n', 1)`)
	require.NoError(t, err)

	create := `mutation { subscriptionBangumiCreate(data: {subscriptionId: 1, bangumiId: 1}) { id } }`
	res := env.executor.Execute(asSubscriber(1), create, "", nil)
	require.Empty(t, res.Errors)

	res = env.executor.Execute(asSubscriber(1), create, "", nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "db_constraint", res.Errors[0].Extensions["code"])
}

package mongostore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/iliyamo/restaurant-service/internal/store"
)

func TestToRecordStripsID(t *testing.T) {
	rec, err := toRecord(bson.M{"_id": "abc", "numero": "5", "capacidad": int32(4), "expiracion": int64(1700000000000)})
	require.NoError(t, err)
	require.Equal(t, "abc", rec.ID)

	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Data, &m))
	require.NotContains(t, m, "_id")
	require.Equal(t, "5", m["numero"])
	require.EqualValues(t, 4, m["capacidad"])
	require.EqualValues(t, 1700000000000, m["expiracion"])
}

func TestToRecordNestedItems(t *testing.T) {
	doc := bson.M{"_id": "p1", "items": bson.A{bson.M{"nombre": "Sopa", "precio": 20.5}}}
	rec, err := toRecord(doc)
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[{"nombre":"Sopa","precio":20.5}]}`, string(rec.Data))
}

func TestUpdateDocsFoldsCondIntoFilter(t *testing.T) {
	filter, update := updateDocs("m1",
		map[string]any{"estado": "libre", "qr": "abc12345", "reserva": nil},
		map[string]any{"estado": "ocupada", "ultimoUso": int64(1700000000000), "llamando": nil})

	require.Equal(t, bson.M{
		"_id":     "m1",
		"estado":  "libre",
		"qr":      "abc12345",
		"reserva": bson.M{"$exists": false},
	}, filter)
	require.Equal(t, bson.M{
		"$set":   bson.M{"estado": "ocupada", "ultimoUso": int64(1700000000000)},
		"$unset": bson.M{"llamando": ""},
	}, update)
}

func TestUpdateDocsWithoutCond(t *testing.T) {
	filter, update := updateDocs("m1", nil, map[string]any{"estado": "libre"})
	require.Equal(t, bson.M{"_id": "m1"}, filter)
	require.Equal(t, bson.M{"$set": bson.M{"estado": "libre"}}, update)

	_, update = updateDocs("m1", nil, nil)
	require.Empty(t, update)
}

func countReply(n int32) bson.D {
	return mtest.CreateCursorResponse(0, "test.mesas", mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func TestUpdateIfAgainstServerReplies(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	cond := map[string]any{"estado": "libre"}
	patch := map[string]any{"estado": "ocupada"}

	mt.Run("condition holds", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		ok, err := New(mt.DB).UpdateIf(ctx, store.Mesas, "m1", cond, patch)
		require.NoError(mt, err)
		require.True(mt, ok)
	})

	mt.Run("condition fails", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			countReply(1))
		ok, err := New(mt.DB).UpdateIf(ctx, store.Mesas, "m1", cond, patch)
		require.NoError(mt, err)
		require.False(mt, ok)
	})

	mt.Run("missing record", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			countReply(0))
		_, err := New(mt.DB).UpdateIf(ctx, store.Mesas, "m1", cond, patch)
		require.ErrorIs(mt, err, store.ErrNotFound)
	})
}

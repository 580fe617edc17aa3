package mongostore

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/repository"
	"agency-crm-api/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestStore(t *testing.T) *CreditStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("set MONGO_URI to run the Mongo credit store tests")
	}
	client, err := database.ConnectMongo(uri, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return NewCreditStore(client.Database("agency_crm_test")).(*CreditStore)
}

func TestCreditStoreRechargeAndReveal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	t.Cleanup(func() { _, _ = store.collection.DeleteOne(ctx, bson.M{"_id": userID.String()}) })

	require.NoError(t, store.EnsureAccount(ctx, userID))
	require.NoError(t, store.EnsureAccount(ctx, userID))

	_, err := store.Deduct(ctx, userID, 1, &model.CreditHistory{Type: model.CreditDeduction, Amount: 1, Date: time.Now()})
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)

	adminID := uuid.New()
	account, err := store.Recharge(ctx, userID, 10, &model.CreditHistory{
		Type: model.CreditRecharge, Amount: 10, Reason: "Recharge manuelle", Date: time.Now(), AdminID: &adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, account.Current)
	assert.Equal(t, 10, account.Total)
	assert.NotNil(t, account.LastRecharge)

	clientID := uuid.New()
	account, err = store.Deduct(ctx, userID, 3, &model.CreditHistory{
		Type: model.CreditDeduction, Amount: 3, Date: time.Now().Add(time.Millisecond), RelatedClientID: &clientID,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, account.Current)
	assert.Equal(t, 3, account.Used())

	entries, total, err := store.ListHistory(ctx, userID, 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, model.CreditDeduction, entries[0].Type)
	assert.Equal(t, clientID, *entries[0].RelatedClientID)
	assert.Equal(t, adminID, *entries[1].AdminID)
}

func TestCreditStoreConcurrentDeduct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	t.Cleanup(func() { _, _ = store.collection.DeleteOne(ctx, bson.M{"_id": userID.String()}) })

	created, err := store.Initialize(ctx, userID, 3, &model.CreditHistory{Type: model.CreditRecharge, Amount: 3, Date: time.Now()})
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.Initialize(ctx, userID, 3, &model.CreditHistory{Type: model.CreditRecharge, Amount: 3, Date: time.Now()})
	require.NoError(t, err)
	assert.False(t, created)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Deduct(ctx, userID, 3, &model.CreditHistory{Type: model.CreditDeduction, Amount: 3, Date: time.Now()})
			if err == nil {
				successes.Add(1)
			} else if !errors.Is(err, repository.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	account, err := store.FindAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, account.Current)
}

func TestCreditStoreConcurrentFirstRecharge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	t.Cleanup(func() { _, _ = store.collection.DeleteOne(ctx, bson.M{"_id": userID.String()}) })

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Recharge(ctx, userID, 5, &model.CreditHistory{Type: model.CreditRecharge, Amount: 5, Date: time.Now()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	account, err := store.FindAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, workers*5, account.Current)
	assert.Equal(t, workers*5, account.Total)

	entries, total, err := store.ListHistory(ctx, userID, -10, 20)
	require.NoError(t, err)
	assert.EqualValues(t, workers, total)
	assert.Empty(t, entries)
}

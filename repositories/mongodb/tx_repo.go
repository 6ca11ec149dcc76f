package mongodb

import (
	// Go Internal Packages
	"context"
	"fmt"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TxRepository struct {
	db         *mongo.Database
	collection string
}

func NewTxRepository(db *mongo.Database) *TxRepository {
	return &TxRepository{db: db, collection: transactionsCollection}
}

func (r *TxRepository) coll() *mongo.Collection {
	return r.db.Collection(r.collection)
}

// InsertTransaction inserts a single transaction into database
func (r *TxRepository) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := r.coll().InsertOne(ctx, tx)
	if mongo.IsDuplicateKeyError(err) {
		return errors.E(errors.Conflict, "duplicate transaction", err)
	}
	return err
}

// AttachGatewayID records the provider id of a transaction that was stored without one.
func (r *TxRepository) AttachGatewayID(ctx context.Context, requestNumber, gatewayID string) error {
	filter := bson.M{"_id": requestNumber, "$or": bson.A{
		bson.M{"gateway_id": bson.M{"$exists": false}},
		bson.M{"gateway_id": gatewayID},
	}}
	res, err := r.coll().UpdateOne(ctx, filter, bson.M{"$set": bson.M{"gateway_id": gatewayID}})
	if mongo.IsDuplicateKeyError(err) {
		return errors.E(errors.Conflict, "duplicate gateway id", err)
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := r.GetTransaction(ctx, requestNumber); err != nil {
		return err
	}
	return errors.E(errors.Conflict, "transaction already has a gateway id", nil)
}

func (r *TxRepository) GetTransaction(ctx context.Context, requestNumber string) (models.Transaction, error) {
	return r.findOne(ctx, bson.M{"_id": requestNumber})
}

func (r *TxRepository) GetTransactionByGatewayID(ctx context.Context, gatewayID string) (models.Transaction, error) {
	return r.findOne(ctx, bson.M{"gateway_id": gatewayID})
}

func (r *TxRepository) findOne(ctx context.Context, filter bson.M) (models.Transaction, error) {
	var tx models.Transaction
	err := r.coll().FindOne(ctx, filter).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Transaction{}, errors.ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if err := checkStored(tx); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func checkStored(tx models.Transaction) error {
	if !tx.Method.Valid() || !tx.Status.Valid() {
		return fmt.Errorf("transaction %s has method %q status %q", tx.RequestNumber, tx.Method, tx.Status)
	}
	return nil
}

// ListTransactions returns the user's transactions, newest first.
func (r *TxRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

// SettleTransaction flips a PENDING transaction to a terminal status and sets the processed
// marker in the same atomic update. Concurrent callers race on the status filter and at most
// one of them observes true.
func (r *TxRepository) SettleTransaction(ctx context.Context, requestNumber string, status models.Status, at time.Time) (models.Transaction, bool, error) {
	filter := bson.M{"_id": requestNumber, "status": models.StatusPending}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"processed":  true,
		"updated_at": at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var tx models.Transaction
	err := r.coll().FindOneAndUpdate(ctx, filter, update, opts).Decode(&tx)
	if err == nil {
		return tx, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Transaction{}, false, err
	}

	current, err := r.GetTransaction(ctx, requestNumber)
	if err != nil {
		return models.Transaction{}, false, err
	}
	return current, false, nil
}

func (r *TxRepository) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	filter := bson.M{"status": models.StatusPending, "created_at": bson.M{"$lt": before}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *TxRepository) ListUnapplied(ctx context.Context, limit int) ([]models.Transaction, error) {
	filter := bson.M{"processed": true, "effect_applied": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *TxRepository) markApplied(ctx context.Context, requestNumber string) (bool, error) {
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": requestNumber, "effect_applied": false},
		bson.M{"$set": bson.M{"effect_applied": true}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *TxRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Transaction, error) {
	cur, err := r.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	txs := []models.Transaction{}
	if err := cur.All(ctx, &txs); err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := checkStored(tx); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

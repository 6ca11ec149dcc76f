package mongodb

import (
	// Go Internal Packages
	"context"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// appliedRefsWindow bounds the per user list of settled request numbers. A transaction is
// re-applied only by the sweeper, which picks up unapplied ones long before they fall out.
const appliedRefsWindow = 500

type UserRepository struct {
	db  *mongo.Database
	txs *TxRepository
}

func NewUserRepository(db *mongo.Database, txs *TxRepository) *UserRepository {
	return &UserRepository{db: db, txs: txs}
}

func (r *UserRepository) coll() *mongo.Collection {
	return r.db.Collection(usersCollection)
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := r.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, errors.ErrUserNotFound
	}
	return u, err
}

// ReserveBalance debits amount in a single conditional update so that concurrent
// withdrawals can never both pass the balance check.
func (r *UserRepository) ReserveBalance(ctx context.Context, userID string, amount models.Amount) error {
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": userID, "balance": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"balance": -amount}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return r.missingOr(ctx, userID, errors.ErrInsufficientFunds)
}

func (r *UserRepository) ReleaseBalance(ctx context.Context, userID string, amount models.Amount) error {
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$inc": bson.M{"balance": amount}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

// ApplyEffect credits the balance effect of a settled transaction. The user document keeps
// the request number in applied_refs within the same update, so a second call is a no-op
// even if the transaction's effect_applied flag was never written.
func (r *UserRepository) ApplyEffect(ctx context.Context, requestNumber string) (bool, error) {
	tx, err := r.txs.GetTransaction(ctx, requestNumber)
	if err != nil {
		return false, err
	}
	if !tx.Processed || tx.EffectApplied {
		return false, nil
	}

	applied := false
	if effect := tx.BalanceEffect(); effect != 0 {
		res, err := r.coll().UpdateOne(ctx,
			bson.M{"_id": tx.UserID, "applied_refs": bson.M{"$ne": requestNumber}},
			bson.M{
				"$inc": bson.M{"balance": effect},
				"$push": bson.M{"applied_refs": bson.M{
					"$each":  bson.A{requestNumber},
					"$slice": -appliedRefsWindow,
				}},
			},
		)
		if err != nil {
			return false, err
		}
		if res.MatchedCount == 0 {
			if err := r.missingOr(ctx, tx.UserID, nil); err != nil {
				return false, err
			}
		}
		applied = res.MatchedCount == 1
	}

	marked, err := r.txs.markApplied(ctx, requestNumber)
	if err != nil {
		return applied, err
	}
	if tx.BalanceEffect() == 0 {
		applied = marked
	}
	return applied, nil
}

func (r *UserRepository) missingOr(ctx context.Context, userID string, err error) error {
	n, cErr := r.coll().CountDocuments(ctx, bson.M{"_id": userID})
	if cErr != nil {
		return cErr
	}
	if n == 0 {
		return errors.ErrUserNotFound
	}
	return err
}

type SettingsRepository struct {
	db *mongo.Database
}

func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting returns an empty value for unknown keys.
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var s models.Setting
	err := r.db.Collection(settingsCollection).FindOne(ctx, bson.M{"_id": key}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	return s.Value, err
}

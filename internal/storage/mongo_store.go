package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keldara/vaultcraft/internal/vaultdoc"
)

// ---------- SRP RECORD STORE ----------

type MongoSrpStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoSrpStore(ctx context.Context, uri, dbName, collName string) (*MongoSrpStore, error) {
	cli, coll, err := connectAndIndex(ctx, uri, dbName, collName, "username")
	if err != nil {
		return nil, err
	}
	return &MongoSrpStore{client: cli, coll: coll}, nil
}

func (m *MongoSrpStore) PutSrpRecord(ctx context.Context, rec SrpRecord) error {
	if rec.Username == "" {
		return errors.New("storage: empty username")
	}
	_, err := m.coll.UpdateOne(
		ctx,
		bson.M{"username": rec.Username},
		bson.M{
			"$set": bson.M{
				"username":    rec.Username,
				"salt":        rec.Salt,
				"verifier":    rec.Verifier,
				"totp_secret": rec.TOTPSecret,
			},
			"$setOnInsert": bson.M{"createdAt": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *MongoSrpStore) GetSrpRecord(ctx context.Context, username string) (SrpRecord, error) {
	var rec SrpRecord
	err := m.coll.FindOne(ctx, bson.M{"username": username}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return SrpRecord{}, ErrNotFound
	}
	return rec, err
}

func (m *MongoSrpStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ---------- VAULT ENVELOPE STORE ----------

type MongoVaultStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoVaultStore(ctx context.Context, uri, dbName, collName string) (*MongoVaultStore, error) {
	cli, coll, err := connectAndIndex(ctx, uri, dbName, collName, "user")
	if err != nil {
		return nil, err
	}
	return &MongoVaultStore{client: cli, coll: coll}, nil
}

func (m *MongoVaultStore) PutVaultEnvelope(ctx context.Context, env vaultdoc.SyncEnvelope) error {
	if env.User == "" {
		return errors.New("storage: empty user")
	}
	_, err := m.coll.ReplaceOne(
		ctx,
		bson.M{"user": env.User},
		env,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoVaultStore) GetVaultEnvelope(ctx context.Context, username string) (vaultdoc.SyncEnvelope, error) {
	var env vaultdoc.SyncEnvelope
	err := m.coll.FindOne(ctx, bson.M{"user": username}).Decode(&env)
	if err == mongo.ErrNoDocuments {
		return vaultdoc.SyncEnvelope{}, ErrNotFound
	}
	return env, err
}

func (m *MongoVaultStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// connectAndIndex dials uri, pings it, and ensures a unique index on
// uniqueField — the same connect/ping/index sequence the teacher's
// Mongo stores use for every collection they open.
func connectAndIndex(ctx context.Context, uri, dbName, collName, uniqueField string) (*mongo.Client, *mongo.Collection, error) {
	if uri == "" {
		return nil, nil, errors.New("storage: mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, nil, err
	}

	coll := cli.Database(dbName).Collection(collName)
	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: uniqueField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return cli, coll, nil
}

// Package mongostore provides a MongoDB-backed version store. Documents use
// camelCase field names: softwareName, version, createdAt, updatedAt.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/version-radar/internal/radar"
)

const (
	defaultDatabase   = "version_radar"
	defaultCollection = "versions"
)

// Config selects the deployment, database and collection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

type decoder interface {
	Decode(v interface{}) error
}

type collection interface {
	FindOne(ctx context.Context, filter bson.M) decoder
	FindOneAndUpdate(ctx context.Context, filter, update bson.M, opts *options.FindOneAndUpdateOptions) decoder
}

// driverCollection adapts *mongo.Collection to collection.
type driverCollection struct {
	c *mongo.Collection
}

func (d driverCollection) FindOne(ctx context.Context, filter bson.M) decoder {
	return d.c.FindOne(ctx, filter)
}

func (d driverCollection) FindOneAndUpdate(
	ctx context.Context,
	filter, update bson.M,
	opts *options.FindOneAndUpdateOptions,
) decoder {
	return d.c.FindOneAndUpdate(ctx, filter, update, opts)
}

type document struct {
	SoftwareName string    `bson:"softwareName"`
	Version      string    `bson:"version"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d document) record() radar.VersionRecord {
	return radar.VersionRecord{
		SoftwareName: d.SoftwareName,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Store reads and upserts version documents.
type Store struct {
	client *mongo.Client
	raw    *mongo.Collection
	coll   collection
}

// New connects to MongoDB and verifies the deployment is reachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	raw := client.Database(cfg.Database).Collection(cfg.Collection)
	return &Store{client: client, raw: raw, coll: driverCollection{c: raw}}, nil
}

// NewWithCollection builds a Store over an existing collection handle (primarily for testing).
func NewWithCollection(coll collection) *Store {
	return &Store{coll: coll}
}

// Migrate ensures the unique index on softwareName.
func (s *Store) Migrate(ctx context.Context) error {
	if s.raw == nil {
		return nil
	}
	_, err := s.raw.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "softwareName", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create softwareName index: %w", err)
	}
	return nil
}

// Session starts a client session when connected; EndSession runs on Close.
func (s *Store) Session(_ context.Context) (radar.Session, error) {
	if s.client == nil {
		return &session{coll: s.coll}, nil
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start mongodb session: %w", err)
	}
	return &session{coll: s.coll, sess: sess}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

type session struct {
	coll collection
	sess mongo.Session
}

func (ss *session) scope(ctx context.Context) context.Context {
	if ss.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, ss.sess)
}

func (ss *session) Get(ctx context.Context, softwareName string) (radar.VersionRecord, error) {
	var doc document
	err := ss.coll.FindOne(ss.scope(ctx), bson.M{"softwareName": softwareName}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return radar.VersionRecord{}, radar.ErrNotFound
	}
	if err != nil {
		return radar.VersionRecord{}, fmt.Errorf("find version: %w", err)
	}
	return doc.record(), nil
}

func (ss *session) Upsert(ctx context.Context, softwareName, version string, at time.Time) (radar.VersionRecord, error) {
	update := bson.M{
		"$set":         bson.M{"version": version, "updatedAt": at},
		"$setOnInsert": bson.M{"createdAt": at},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc document
	err := ss.coll.FindOneAndUpdate(ss.scope(ctx), bson.M{"softwareName": softwareName}, update, opts).Decode(&doc)
	if err != nil {
		return radar.VersionRecord{}, fmt.Errorf("upsert version: %w", err)
	}
	return doc.record(), nil
}

func (ss *session) Close(ctx context.Context) error {
	if ss.sess != nil {
		ss.sess.EndSession(ctx)
		ss.sess = nil
	}
	return nil
}

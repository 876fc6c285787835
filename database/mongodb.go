package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SusheelSathyaraj/FlightDataLoader/config"
	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBClient loads each table into a collection of the same name.
// Batches run in a multi-document transaction, which needs a replica set or sharded cluster.
type MongoDBClient struct {
	URI      string
	DBName   string
	Client   *mongo.Client
	Database *mongo.Database
	ctx      context.Context
}

// creating a new MongoDbClient using manual parameters
func NewMongoDBClient(uri, dbname string) *MongoDBClient {
	return &MongoDBClient{
		URI:    uri,
		DBName: dbname,
		ctx:    context.Background(),
	}
}

// creating a new MongoDBClient using config
func NewMongoDBClientFromConfig(cfg *config.Config) *MongoDBClient {
	return &MongoDBClient{
		URI:    mongoURI(cfg),
		DBName: cfg.MongoDB.DBName,
		ctx:    context.Background(),
	}
}

// explicit uri wins, otherwise build one from the database section
func mongoURI(cfg *config.Config) string {
	if cfg.MongoDB.URI != "" {
		return cfg.MongoDB.URI
	}
	if cfg.Database.User == "" {
		return fmt.Sprintf("mongodb://%s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.MongoDB.DBName,
	)
}

func (m *MongoDBClient) Name() string { return "mongodb" }

// connecting to mongoDB
func (m *MongoDBClient) Connect() error {
	clientOptions := options.Client().ApplyURI(m.URI)

	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.Client = client
	m.Database = client.Database(m.DBName)
	return nil
}

// closing the mongodb connection
func (m *MongoDBClient) Close() error {
	if m.Client != nil {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		return m.Client.Disconnect(ctx)
	}
	return nil
}

func (m *MongoDBClient) InsertRows(ctx context.Context, table string, columns []string, rows []schema.Row) (int64, error) {
	if m.Database == nil {
		return 0, ErrNotConnected
	}
	if len(rows) == 0 {
		return 0, nil
	}

	docs, err := toDocuments(columns, rows)
	if err != nil {
		return 0, err
	}

	sess, err := m.Client.StartSession()
	if err != nil {
		return 0, fmt.Errorf("failed to start session, %w", err)
	}
	defer sess.EndSession(ctx)

	var inserted int64
	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(); err != nil {
			return fmt.Errorf("failed to begin transaction, %w", err)
		}
		res, err := m.Database.Collection(table).InsertMany(sc, docs, options.InsertMany().SetOrdered(true))
		if err != nil {
			abortTransaction(sc, sess, table)
			return fmt.Errorf("failed to insert documents, %w", err)
		}
		if err := sess.CommitTransaction(sc); err != nil {
			return fmt.Errorf("failed to commit transaction, %w", err)
		}
		inserted = int64(len(res.InsertedIDs))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

type transactionAborter interface {
	AbortTransaction(ctx context.Context) error
}

func abortTransaction(ctx context.Context, sess transactionAborter, table string) {
	if err := sess.AbortTransaction(ctx); err != nil {
		log.Printf("failed to abort transaction on %s, %v", table, err)
	}
}

func (m *MongoDBClient) CountRows(ctx context.Context, table string) (int64, error) {
	if m.Database == nil {
		return 0, ErrNotConnected
	}
	return m.Database.Collection(table).CountDocuments(ctx, bson.D{})
}

// one document per row, fields in column order, nil stored as null
func toDocuments(columns []string, rows []schema.Row) ([]interface{}, error) {
	docs := make([]interface{}, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
		doc := make(bson.D, len(columns))
		for j, col := range columns {
			doc[j] = bson.E{Key: col, Value: row[j]}
		}
		docs[i] = doc
	}
	return docs, nil
}

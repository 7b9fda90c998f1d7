package indexer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Create builds every registered index. With ContinueOnError a failure is
// recorded in the result and the remaining indexes are still attempted.
func (m *Manager) Create(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.options.Timeout)
	defer cancel()

	start := time.Now()
	result := &Result{Failures: []FailureDetail{}}

	for _, def := range m.indexes {
		name := indexName(def)
		if m.options.SkipIfExists && name != "" {
			exists, err := m.indexExists(ctx, def.Collection, name)
			if err == nil && exists {
				m.logger.Info("index already exists, skipping",
					zap.String("collection", def.Collection), zap.String("index", name))
				result.SuccessCount++
				continue
			}
		}

		created, err := m.db.Collection(def.Collection).Indexes().CreateOne(ctx, def.Index)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				m.logger.Warn("cannot create unique index over duplicate data",
					zap.String("collection", def.Collection), zap.String("index", name))
			} else {
				m.logger.Error("failed to create index",
					zap.String("collection", def.Collection), zap.String("index", name), zap.Error(err))
			}

			result.FailedCount++
			result.Failures = append(result.Failures, FailureDetail{
				Collection: def.Collection,
				IndexName:  name,
				Error:      err.Error(),
			})

			if !m.options.ContinueOnError {
				result.Duration = time.Since(start)
				return result, errors.Wrapf(err, "create index %s on %s", name, def.Collection)
			}
			continue
		}

		m.logger.Info("created index", zap.String("collection", def.Collection), zap.String("index", created))
		result.SuccessCount++
	}

	result.Duration = time.Since(start)
	if result.FailedCount > 0 {
		return result, errors.Errorf("%d indexes failed to create", result.FailedCount)
	}
	return result, nil
}

// Drop removes the registered indexes by name from the given collections, or
// from every collection with registered indexes. The _id index and indexes
// this manager does not know about are left alone.
func (m *Manager) Drop(ctx context.Context, collections ...string) error {
	ctx, cancel := context.WithTimeout(ctx, m.options.Timeout)
	defer cancel()

	targets := collections
	if len(targets) == 0 {
		targets = m.Collections()
	}
	wanted := make(map[string]bool, len(targets))
	for _, c := range targets {
		wanted[c] = true
	}

	for _, def := range m.indexes {
		name := indexName(def)
		if !wanted[def.Collection] || name == "" {
			continue
		}
		if _, err := m.db.Collection(def.Collection).Indexes().DropOne(ctx, name); err != nil {
			if !m.options.ContinueOnError {
				return errors.Wrapf(err, "drop index %s on %s", name, def.Collection)
			}
			m.logger.Warn("failed to drop index",
				zap.String("collection", def.Collection), zap.String("index", name), zap.Error(err))
			continue
		}
		m.logger.Info("dropped index", zap.String("collection", def.Collection), zap.String("index", name))
	}

	return nil
}

func (m *Manager) List(ctx context.Context, collection string) ([]bson.M, error) {
	cursor, err := m.db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "list indexes on %s", collection)
	}
	defer cursor.Close(ctx)

	var indexes []bson.M
	if err = cursor.All(ctx, &indexes); err != nil {
		return nil, errors.Wrapf(err, "decode indexes on %s", collection)
	}
	return indexes, nil
}

func (m *Manager) indexExists(ctx context.Context, collection, name string) (bool, error) {
	indexes, err := m.List(ctx, collection)
	if err != nil {
		return false, err
	}

	for _, idx := range indexes {
		if n, ok := idx["name"].(string); ok && n == name {
			return true, nil
		}
	}
	return false, nil
}

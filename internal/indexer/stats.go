package indexer

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func (m *Manager) Stats(ctx context.Context, collection string) ([]IndexStats, error) {
	ctx, cancel := context.WithTimeout(ctx, m.options.Timeout)
	defer cancel()

	pipeline := mongo.Pipeline{{{Key: "$indexStats", Value: bson.D{}}}}
	cursor, err := m.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrapf(err, "index stats for %s", collection)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err = cursor.All(ctx, &raw); err != nil {
		return nil, errors.Wrapf(err, "decode index stats for %s", collection)
	}

	stats := make([]IndexStats, 0, len(raw))
	for _, r := range raw {
		stats = append(stats, parseIndexStats(r))
	}
	return stats, nil
}

func (m *Manager) StatsAll(ctx context.Context) (map[string][]IndexStats, error) {
	results := make(map[string][]IndexStats)
	for _, coll := range m.Collections() {
		stats, err := m.Stats(ctx, coll)
		if err != nil {
			if m.options.ContinueOnError {
				m.logger.Warn("skipping index stats", zap.String("collection", coll), zap.Error(err))
				results[coll] = []IndexStats{}
				continue
			}
			return nil, err
		}
		results[coll] = stats
	}
	return results, nil
}

// parseIndexStats reads one $indexStats document. Counters come back as
// int32 or int64 depending on the server.
func parseIndexStats(raw bson.M) IndexStats {
	var stat IndexStats
	stat.Name, _ = raw["name"].(string)
	stat.Host, _ = raw["host"].(string)
	stat.Building, _ = raw["building"].(bool)

	accesses, ok := raw["accesses"].(bson.M)
	if !ok {
		return stat
	}
	switch ops := accesses["ops"].(type) {
	case int64:
		stat.Accesses = ops
	case int32:
		stat.Accesses = int64(ops)
	}
	if since, ok := accesses["since"].(primitive.DateTime); ok {
		stat.Since = since.Time().UTC()
	}
	return stat
}

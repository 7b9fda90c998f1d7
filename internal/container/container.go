package container

import (
	"context"

	"khoomi-api-io/taxonomy/config"
	"khoomi-api-io/taxonomy/internal"
	"khoomi-api-io/taxonomy/internal/auth"
	"khoomi-api-io/taxonomy/pkg/controllers"
	"khoomi-api-io/taxonomy/pkg/services"
	"khoomi-api-io/taxonomy/pkg/taxonomy"
	"khoomi-api-io/taxonomy/pkg/util"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type ServiceContainer struct {
	Config *config.Config
	Logger *zap.Logger
	Mongo  *mongo.Client
	Redis  *redis.Client
	Tokens *auth.TokenManager

	CategoryStore   services.CategoryStore
	CategoryService services.CategoryService

	CategoryController *controllers.CategoryController
}

var (
	connectDB    = util.ConnectDB
	connectRedis = util.ConnectRedis
	newUploader  = func(cfg config.CloudinaryConfig) (util.MediaUploader, error) {
		return util.NewCloudinaryUploader(cfg)
	}
)

// NewServiceContainer connects to MongoDB and Redis and wires the category
// stack on top of them. Image uploads are enabled only when Cloudinary is
// configured. Any connection already opened is released when a later step
// fails.
func NewServiceContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sc *ServiceContainer, err error) {
	var opened []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			opened[i]()
		}
	}()

	mongoClient, err := connectDB(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, err
	}
	opened = append(opened, func() { _ = mongoClient.Disconnect(context.Background()) })

	redisClient, err := connectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	opened = append(opened, func() { _ = redisClient.Close() })

	var uploader util.MediaUploader
	if cfg.Cloudinary.CloudName != "" {
		if uploader, err = newUploader(cfg.Cloudinary); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("cloudinary is not configured, category image uploads are disabled")
	}

	store := services.NewMongoCategoryStore(mongoClient, cfg.Mongo.Database)
	sc, err = NewServiceContainerWith(cfg, logger, store, redisClient, uploader)
	if err != nil {
		return nil, err
	}
	sc.Mongo = mongoClient
	return sc, nil
}

// NewServiceContainerWith wires the category stack over an existing store.
// redisClient may be nil; cache invalidation and shared rate limits are then
// off.
func NewServiceContainerWith(cfg *config.Config, logger *zap.Logger, store services.CategoryStore, redisClient *redis.Client, uploader util.MediaUploader) (*ServiceContainer, error) {
	policy, err := taxonomy.ParseDeletePolicy(cfg.Category.DeletePolicy)
	if err != nil {
		return nil, errors.Wrap(err, "CATEGORY_DELETE_POLICY")
	}
	tokens := auth.NewTokenManager(cfg.JWT.Secret)
	if !tokens.Configured() {
		return nil, errors.Wrap(auth.ErrEmptySecret, "SECRET")
	}

	var cache services.CategoryCacheInvalidator
	if redisClient != nil {
		cache = internal.NewCachePublisher(redisClient, logger)
	}

	categoryService := services.NewCategoryService(store, cache, logger, services.CategoryServiceConfig{
		DeletePolicy:  policy,
		MaxDepth:      cfg.Category.MaxDepth,
		MaxHops:       cfg.Category.MaxHops,
		CommitRetries: cfg.Category.CommitRetries,
	})

	return &ServiceContainer{
		Config:             cfg,
		Logger:             logger,
		Redis:              redisClient,
		Tokens:             tokens,
		CategoryStore:      store,
		CategoryService:    categoryService,
		CategoryController: controllers.InitCategoryController(categoryService, uploader),
	}, nil
}

// GetCategoryController returns the category controller instance
func (sc *ServiceContainer) GetCategoryController() *controllers.CategoryController {
	return sc.CategoryController
}

func (sc *ServiceContainer) Close(ctx context.Context) error {
	var firstErr error
	if sc.Redis != nil {
		if err := sc.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if sc.Mongo != nil {
		if err := sc.Mongo.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

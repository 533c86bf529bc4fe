package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivankudzin/matchcore/internal/config"
	"github.com/ivankudzin/matchcore/internal/domain/enums"
	s3infra "github.com/ivankudzin/matchcore/internal/infra/s3"
	reconcilejob "github.com/ivankudzin/matchcore/internal/jobs/reconcile"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	pgrepo "github.com/ivankudzin/matchcore/internal/repo/postgres"
	redrepo "github.com/ivankudzin/matchcore/internal/repo/redis"
	authsvc "github.com/ivankudzin/matchcore/internal/services/auth"
	likessvc "github.com/ivankudzin/matchcore/internal/services/likes"
	matchessvc "github.com/ivankudzin/matchcore/internal/services/matches"
	matchingsvc "github.com/ivankudzin/matchcore/internal/services/matching"
	ratesvc "github.com/ivankudzin/matchcore/internal/services/rate"
	reconcilesvc "github.com/ivankudzin/matchcore/internal/services/reconcile"
)

type likeStore interface {
	matchingsvc.LikeStore
	likessvc.LikeStore
	reconcilesvc.LikeStore
}

type matchStore interface {
	matchingsvc.MatchStore
	matchessvc.MatchStore
	reconcilesvc.MatchStore
}

// Storage is the set of stores one driver provides.
type Storage struct {
	Likes     likeStore
	Matches   matchStore
	Reconcile reconcilesvc.Store
	Tx        matchingsvc.Transactor
	Locker    matchingsvc.PairLocker
}

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	job        *reconcilejob.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	var pool *pgxpool.Pool
	var storage Storage
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		storage = MemoryStorage(memory.NewStore(), cfg.Engine.LockMode)
	default:
		if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
			log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
		} else if err := pgrepo.Migrate(ctx, p); err != nil {
			p.Close()
			log.Warn("postgres migrate failed, continuing in degraded mode", zap.Error(err))
		} else {
			pool = p
		}
		storage = PostgresStorage(pool, cfg.Engine.LockMode)
	}

	var redisClient *goredis.Client
	var runLock reconcilejob.RunLock
	var swipeLimiter *ratesvc.Limiter
	if cfg.Redis.Addr != "" {
		c, err := redrepo.NewClient(ctx, redrepo.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("redis init failed, running without run lock and swipe limits", zap.Error(err))
		} else {
			redisClient = c
			runLock = redrepo.NewRunLockRepo(c)
			swipeLimiter = ratesvc.NewLimiter(
				redrepo.NewRateRepo(c),
				cfg.Engine.SwipeRatePerMinute,
				cfg.Engine.SwipeRatePer10Sec,
			)
		}
	}

	var s3Client *minio.Client
	var archiver reconcilesvc.Archiver
	if cfg.S3.Endpoint != "" {
		c, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Region:    cfg.S3.Region,
		})
		if err != nil {
			log.Warn("s3 init failed, reconcile reports will not be archived", zap.Error(err))
		} else {
			s3Client = c
			archiver = reconcilesvc.NewS3Archiver(c, cfg.S3.Bucket)
		}
	}

	matchingService := matchingsvc.NewService(matchingsvc.Dependencies{
		Likes:   storage.Likes,
		Matches: storage.Matches,
		Tx:      storage.Tx,
		Locker:  storage.Locker,
	})
	likeService := likessvc.NewService(likessvc.Dependencies{LikeStore: storage.Likes})
	matchesService := matchessvc.NewService(matchessvc.Dependencies{MatchStore: storage.Matches})
	reconcileService := reconcilesvc.NewService(reconcilesvc.Dependencies{
		Store:    storage.Reconcile,
		Likes:    storage.Likes,
		Matches:  storage.Matches,
		Tx:       storage.Tx,
		Locker:   storage.Locker,
		Archiver: archiver,
		Logger:   log.Named("reconcile"),
	})
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)
	RegisterRoutes(r, Dependencies{
		MatchingService:  matchingService,
		MatchService:     matchesService,
		LikeService:      likeService,
		ReconcileService: reconcileService,
		SwipeLimiter:     swipeLimiter,
		JWTManager:       jwtManager,
		Logger:           log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	job := reconcilejob.New(reconcileService, runLock, reconcilesvc.Options{
		Apply:         cfg.Reconcile.Apply,
		BackfillLikes: cfg.Reconcile.BackfillLikes,
		Archive:       cfg.Reconcile.Archive,
	}, cfg.Reconcile.LockTTL, log.Named("reconcile_job"))

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		job:        job,
		httpRouter: r,
	}, nil
}

// PostgresStorage builds the postgres stores. A nil pool yields stores that
// report repoerr.ErrUnavailable on every call.
func PostgresStorage(pool *pgxpool.Pool, mode enums.LockMode) Storage {
	storage := Storage{
		Likes:     pgrepo.NewLikeRepo(pool),
		Matches:   pgrepo.NewMatchRepo(pool),
		Reconcile: pgrepo.NewReconcileRepo(pool),
		Tx:        pgrepo.NewTransactor(pool),
	}
	switch mode {
	case enums.LockModeAdvisory:
		storage.Locker = pgrepo.NewPairLocker(pool)
	case enums.LockModeLocal:
		storage.Locker = matchingsvc.NewLocalLocker()
	}
	return storage
}

func MemoryStorage(store *memory.Store, mode enums.LockMode) Storage {
	storage := Storage{
		Likes:     store.Likes(),
		Matches:   store.Matches(),
		Reconcile: store.Reconcile(),
		Tx:        memory.Transactor{},
	}
	if mode != enums.LockModeOptimistic {
		storage.Locker = matchingsvc.NewLocalLocker()
	}
	return storage
}

// Run serves HTTP and, when an interval is configured, runs the reconciler
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("api server started",
			zap.String("addr", a.cfg.HTTP.Addr),
			zap.String("storage", a.cfg.Storage.Driver),
			zap.String("lock_mode", string(a.cfg.Engine.LockMode)),
		)
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if a.cfg.Reconcile.Interval > 0 {
		g.Go(func() error {
			a.logger.Info("reconcile loop started", zap.Duration("interval", a.cfg.Reconcile.Interval))
			return a.job.Loop(gctx, a.cfg.Reconcile.Interval)
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

func (a *App) ReconcileJob() *reconcilejob.Job {
	return a.job
}

// Command jobqueue runs a dispatcher for the order notification queues, or
// enqueues a single job with -enqueue.
//
// Configuration comes from JOBQUEUE_* environment variables (and .env):
//
//	JOBQUEUE_DATABASE_URL=postgres://jobs@db/jobs jobqueue
//	jobqueue -enqueue -queue OrderEmailJobHandler -actor order-123 -priority 10
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/printshop/jobqueue/pkg/admin"
	"github.com/printshop/jobqueue/pkg/config"
	"github.com/printshop/jobqueue/pkg/handlers"
	"github.com/printshop/jobqueue/pkg/logger"
	"github.com/printshop/jobqueue/pkg/mail"
	"github.com/printshop/jobqueue/pkg/queue"
	"github.com/printshop/jobqueue/pkg/registry"
	"github.com/printshop/jobqueue/pkg/storage"
	"github.com/printshop/jobqueue/pkg/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "jobqueue:", err)
		os.Exit(1)
	}
}

type flags struct {
	enqueue  bool
	queue    string
	actor    string
	priority int
	delay    time.Duration
}

func parseFlags(args []string, out io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("jobqueue", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolVar(&f.enqueue, "enqueue", false, "enqueue one job and exit")
	fs.StringVar(&f.queue, "queue", "", "queue name of the job to enqueue")
	fs.StringVar(&f.actor, "actor", "", "actor id (order id) of the job to enqueue")
	fs.IntVar(&f.priority, "priority", 0, "job priority; 0 uses the queue's default")
	fs.DurationVar(&f.delay, "delay", 0, "run the job after this delay")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	if f.enqueue && (f.queue == "" || f.actor == "") {
		return flags{}, errors.New("-enqueue requires -queue and -actor")
	}
	return f, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	f, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.New(
		logger.WithLevel(level),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithOutput(stdout),
		logger.WithAttr(slog.String("service", "jobqueue")),
		logger.WithJobContext(),
	)

	gormLevel := gormlogger.Warn
	if level <= slog.LevelDebug {
		gormLevel = gormlogger.Info
	}
	db, err := storage.Open(cfg.DatabaseURL, gormLevel,
		storage.MaxOpenConns(cfg.DBMaxOpenConns),
		storage.MaxIdleConns(cfg.DBMaxIdleConns),
		storage.ConnMaxLifetime(cfg.DBConnMaxLifetime),
	)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store := storage.NewGormStorage(db)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	sender, err := newSender(cfg, log)
	if err != nil {
		return err
	}
	reg, err := registry.New(handlers.Registrations(handlers.NewGormOrderFinder(db), sender)...)
	if err != nil {
		return err
	}
	q := queue.New(store, reg, queue.WithLogger(log))

	if f.enqueue {
		return enqueue(ctx, q, f, stdout)
	}
	return serve(ctx, cfg, q, store, log)
}

func newSender(cfg config.Config, log *slog.Logger) (mail.Sender, error) {
	if cfg.PostmarkServerToken == "" {
		log.Warn("JOBQUEUE_POSTMARK_SERVER_TOKEN not set, notifications will only be logged")
		return mail.NewLogSender(log), nil
	}
	return mail.NewPostmark(mail.PostmarkConfig{
		ServerToken:  cfg.PostmarkServerToken,
		AccountToken: cfg.PostmarkAccountToken,
		From:         cfg.MailFrom,
	})
}

func enqueue(ctx context.Context, q *queue.Queue, f flags, stdout io.Writer) error {
	var opts []queue.Option
	if f.priority != 0 {
		opts = append(opts, queue.Priority(f.priority))
	}
	if f.delay > 0 {
		opts = append(opts, queue.Delay(f.delay))
	}

	id, err := q.Enqueue(ctx, f.queue, f.actor, opts...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, id)
	return err
}

func serve(ctx context.Context, cfg config.Config, q *queue.Queue, store *storage.GormStorage, log *slog.Logger) error {
	opts := []worker.WorkerOption{
		worker.Concurrency(cfg.Concurrency),
		worker.BatchSize(cfg.BatchSize),
		worker.PollInterval(cfg.PollInterval),
		worker.LeaseTimeout(cfg.LeaseTimeout),
		worker.MaxAttempts(cfg.MaxAttempts),
		worker.WithBackoff(worker.Backoff{
			Base:           cfg.BackoffBase,
			Max:            cfg.BackoffMax,
			JitterFraction: worker.DefaultBackoff().JitterFraction,
		}),
		worker.HandlerTimeout(cfg.HandlerTimeout),
		worker.WithScheduler(cfg.EnableScheduler),
		worker.WithLogger(log),
	}
	if cfg.WorkerID != "" {
		opts = append(opts, worker.WorkerID(cfg.WorkerID))
	}
	w := worker.NewWorker(q, opts...)

	var srv *http.Server
	srvErr := make(chan error, 1)
	if cfg.AdminAddr != "" {
		srv = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           admin.NewServer(store, q.Registry(), log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("admin API listening", "addr", cfg.AdminAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	workerErr := make(chan error, 1)
	go func() { workerErr <- w.Start(workerCtx) }()

	var err error
	select {
	case err = <-workerErr:
	case err = <-srvErr:
		log.Error("admin API failed, stopping worker", "error", err)
		cancel()
		<-workerErr
	}

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

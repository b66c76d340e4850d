package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/HammerMeetNail/fitchat/internal/config"
	"github.com/HammerMeetNail/fitchat/internal/database"
	"github.com/HammerMeetNail/fitchat/internal/logging"
)

const (
	QueueDefault = "default"
	QueuePush    = "push"
)

// RedisOpt builds the asynq connection from the shared redis settings.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	opts := database.RedisOptions(cfg)
	return asynq.RedisClientOpt{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	}
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type AsynqClient struct {
	client enqueuer
}

var _ Client = (*AsynqClient)(nil)

func NewAsynqClient(opt asynq.RedisConnOpt) *AsynqClient {
	return &AsynqClient{client: asynq.NewClient(opt)}
}

func (a *AsynqClient) Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("queue: task type is required")
	}
	var asynqOpts []asynq.Option
	for _, op := range opts {
		asynqOpts = append(asynqOpts, toAsynqOptions(op)...)
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOpts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", t.Type, err)
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

func toAsynqOptions(op EnqueueOption) []asynq.Option {
	var out []asynq.Option
	if op.Queue != "" {
		out = append(out, asynq.Queue(op.Queue))
	}
	if op.MaxRetry > 0 {
		out = append(out, asynq.MaxRetry(op.MaxRetry))
	}
	if op.Timeout > 0 {
		out = append(out, asynq.Timeout(op.Timeout))
	}
	if op.Unique > 0 {
		out = append(out, asynq.Unique(op.Unique))
	}
	return out
}

type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

var _ Server = (*AsynqServer)(nil)

func NewAsynqServer(opt asynq.RedisConnOpt, cfg config.QueueConfig) *AsynqServer {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueuePush: 6, QueueDefault: 1},
		Logger:      asynqLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logging.Error("Background task failed", map[string]interface{}{
				"type":  task.Type(),
				"error": err.Error(),
			})
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}
}

func (s *AsynqServer) Register(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the workers and blocks until ctx is canceled.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// asynqLogger routes asynq's own logs through the service logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logging.Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logging.Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logging.Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logging.Error(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logging.Error(fmt.Sprint(args...)) }

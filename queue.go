/*
Copyright 2025 Vestcore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package vest

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vestcore/vest/config"
	redis_db "github.com/vestcore/vest/internal/redis-db"
)

// Queue wraps the asynq client and inspector used for webhook dispatch
// and the daily accrual trigger.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueWebhook enqueues a webhook event for asynchronous delivery.
func (q *Queue) queueWebhook(ctx context.Context, event NewWebhook) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	if cfg.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(cfg.Queue.WebhookQueue), asynq.MaxRetry(5)}
	task := asynq.NewTask(cfg.Queue.WebhookQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// QueueAccrualRun enqueues a one-off accrual run for the given day.
// The periodic scheduler uses the same task type, so a manual trigger
// and the nightly run share one worker path.
func (q *Queue) QueueAccrualRun(ctx context.Context, asOf time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(asOf)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.Queue(cfg.Queue.AccrualQueue),
		asynq.TaskID("accrual:" + asOf.Format("2006-01-02")),
		asynq.MaxRetry(3),
	}
	task := asynq.NewTask(cfg.Queue.AccrualQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued accrual run for %s", asOf.Format("2006-01-02"))
	return nil
}

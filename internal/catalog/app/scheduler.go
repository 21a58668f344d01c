package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"wbcatalog/config"
	"wbcatalog/internal/catalog/ingest"
	"wbcatalog/pkg/logger"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// cronLog пропускает в наш логгер ошибки cron, в том числе паники задач.
type cronLog struct {
	log logger.Logger
}

func (l cronLog) Printf(format string, v ...interface{}) {
	l.log.Error(format, v...)
}

// Scheduler запускает ingest по расписанию из schedule: в конфиге.
type Scheduler struct {
	cron     *cron.Cron
	ingester Ingester
	log      logger.Logger
}

func NewScheduler(ingester Ingester, jobs []config.ScheduleJob, log logger.Logger) (*Scheduler, error) {
	log = log.WithPrefix("[Scheduler]")
	cronLogger := cron.PrintfLogger(cronLog{log: log})
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		ingester: ingester,
		log:      log,
	}
	for i, job := range jobs {
		if _, err := s.cron.AddFunc(job.Spec, s.job(job)); err != nil {
			return nil, fmt.Errorf("schedule[%d] %q: %w", i, job.Spec, err)
		}
		s.log.Log("Scheduled %q every %q", job.Query, job.Spec)
	}
	return s, nil
}

func (s *Scheduler) job(job config.ScheduleJob) func() {
	req := ingest.Request{Query: job.Query, Pages: job.Pages, Category: job.Category, Policy: job.Policy}
	return func() {
		result, err := s.ingester.Ingest(context.Background(), req)
		switch {
		case errors.Is(err, ingest.ErrBusy):
			s.log.Warn("Skipping %q: another ingestion is running", job.Query)
		case err != nil:
			s.log.Error("Scheduled ingestion %q failed: %v", job.Query, err)
		default:
			s.log.Log("Scheduled ingestion %q: fetched=%d saved=%d", job.Query, result.Fetched, result.Saved)
		}
	}
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

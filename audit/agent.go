package audit

import (
	"context"

	"go.uber.org/zap"
)

const defaultMailboxCapacity = 256

// Agent owns the hash chain and processes events strictly sequentially,
// which is what gives the chain its ordering guarantee: Seal is only
// ever called from the single goroutine run by Start. Persistence, syslog
// export and the event metric happen in per-event goroutines spawned off that
// loop, so a slow storage backend never stalls the chain.
type Agent struct {
	chain   *Chain
	storage Storage
	syslog  *SyslogSender
	tracker *FailureTracker
	logger  *zap.Logger

	serviceName string
	mailbox     chan Event
	done        chan struct{}
}

// NewAgent constructs an Agent. Call Start to begin processing; events
// submitted before Start are buffered in the mailbox up to capacity.
func NewAgent(serviceName string, storage Storage, syslog *SyslogSender, tracker *FailureTracker, mailboxCapacity int, logger *zap.Logger) *Agent {
	if mailboxCapacity <= 0 {
		mailboxCapacity = defaultMailboxCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		storage:     storage,
		syslog:      syslog,
		tracker:     tracker,
		logger:      logger,
		serviceName: serviceName,
		mailbox:     make(chan Event, mailboxCapacity),
		done:        make(chan struct{}),
	}
}

// Start loads chain state from storage (if any) and begins processing
// the mailbox. It returns once the initial chain load completes; event
// processing continues in a goroutine until ctx is canceled.
func (a *Agent) Start(ctx context.Context) {
	a.chain = a.loadChain(ctx)
	go a.run(ctx)
}

func (a *Agent) loadChain(ctx context.Context) *Chain {
	if a.storage == nil {
		a.logger.Info("no audit storage configured, starting in-memory chain", zap.String("service", a.serviceName))
		return NewChain(a.serviceName)
	}

	latest, err := a.storage.Latest(ctx)
	if err != nil {
		a.logger.Error("failed to load audit chain state, starting fresh", zap.Error(err))
		return NewChain(a.serviceName)
	}
	if latest == nil {
		a.logger.Info("starting new audit chain", zap.String("service", a.serviceName))
		return NewChain(a.serviceName)
	}

	a.logger.Info("resuming audit chain", zap.Uint64("sequence", latest.Sequence))
	return ResumeChain(a.serviceName, latest.Hash, latest.Sequence)
}

// Submit enqueues an event for sealing and persistence. It blocks if the
// mailbox is full, applying backpressure to the caller rather than
// dropping events silently.
func (a *Agent) Submit(event Event) {
	select {
	case a.mailbox <- event:
	case <-a.done:
	}
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-a.mailbox:
			sealed := a.chain.Seal(event)
			go a.export(sealed)
		}
	}
}

func (a *Agent) export(event Event) {
	recordEventMetric(context.Background(), event)

	if a.storage != nil {
		ctx := context.Background()
		if err := a.storage.Append(ctx, event); err != nil {
			a.logger.Error("failed to persist audit event", zap.Error(err))
			if a.tracker != nil {
				a.tracker.RecordFailure(err.Error())
			}
		} else if a.tracker != nil {
			a.tracker.RecordSuccess()
		}
	}

	if a.syslog != nil {
		if err := a.syslog.Send(event); err != nil {
			a.logger.Warn("failed to send audit event to syslog", zap.Error(err))
		}
	}
}

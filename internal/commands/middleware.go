package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"wfnotifier/internal/storage"
	logx "wfnotifier/pkg/logx"
)

type Middleware func(next Handler) Handler

// Chain wraps h so that m[0] runs first.
func Chain(h Handler, m ...Middleware) Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// MWPanicRecover turns a panic into a ServerError.
func MWPanicRecover(log logx.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger := log
					if req != nil && !req.Logger.IsZero() {
						logger = req.Logger
					}
					logger.Error("panic recovered",
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					err = Server(fmt.Errorf("panic: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			logger := log
			if !req.Logger.IsZero() {
				logger = req.Logger
			}
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{
				logx.Int("args", len(req.Args)),
				logx.Duration("dur", d),
			}
			msg, serr := classify(err)
			switch {
			case serr != nil:
				logger.Warn("request failed", append(fields, logx.Err(serr))...)
			case msg != "":
				logger.Debug("request rejected", append(fields, logx.String("reason", msg))...)
			case d >= 750*time.Millisecond:
				logger.Info("request ok", fields...)
			default:
				logger.Debug("request ok", fields...)
			}
			return err
		}
	}
}

// MWAudit records every invocation in store. A nil store disables it.
// Audit failures are logged and never fail the request.
func MWAudit(store storage.Store, log logx.Logger) Middleware {
	return func(next Handler) Handler {
		if store == nil {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)

			e := storage.AuditEntry{
				At:     start.UTC(),
				Prefix: req.prefix,
				Author: req.Author,
				OK:     err == nil,
				TookMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				e.Error = err.Error()
			}
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if aerr := store.AppendAudit(actx, e); aerr != nil {
				log.Debug("audit write failed", logx.Err(aerr))
			}
			return err
		}
	}
}

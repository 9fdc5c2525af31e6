package tally

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Operation names, used in logs, traces, errors and hooks.
const (
	OpCloseClientInvoice    = "close_client_invoice"
	OpCloseSupplierInvoice  = "close_supplier_invoice"
	OpDeleteClientInvoice   = "delete_client_invoice"
	OpDeleteSupplierInvoice = "delete_supplier_invoice"
)

// Step names.
const (
	StepValidate = "validate"
	StepLoad     = "load"
	StepNumber   = "number"
	StepPersist  = "persist"
	StepBalance  = "balance"
	StepStock    = "stock"
	StepRemove   = "remove"
)

// StepStatus is the state of one step in a completion log.
type StepStatus string

const (
	StepDone               StepStatus = "done"
	StepSkipped            StepStatus = "skipped"
	StepFailed             StepStatus = "failed"
	StepCompensated        StepStatus = "compensated"
	StepCompensationFailed StepStatus = "compensation_failed"
)

// StepRecord is one entry of a completion log.
type StepRecord struct {
	Step   string     `json:"step"`
	Status StepStatus `json:"status"`
	At     time.Time  `json:"at"`
	Err    string     `json:"error,omitempty"`
}

// OperationError reports a lifecycle operation that stopped at a step.
// Steps lists everything that ran, so the caller can tell which effects are
// already applied.
type OperationError struct {
	Op      string
	Step    string
	Message string
	Code    string
	Steps   []StepRecord
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("tally: %s failed at %s: %v", e.Op, e.Step, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Completed returns the steps that finished and were not compensated.
func (e *OperationError) Completed() []string {
	state := map[string]StepStatus{}
	var order []string
	for _, r := range e.Steps {
		if _, seen := state[r.Step]; !seen {
			order = append(order, r.Step)
		}
		state[r.Step] = r.Status
	}

	var done []string
	for _, s := range order {
		if state[s] == StepDone || state[s] == StepCompensationFailed {
			done = append(done, s)
		}
	}
	return done
}

// errHalt ends a pipeline early and successfully.
var errHalt = errors.New("tally: halt pipeline")

type step struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// pipeline runs named steps in a fixed order and keeps a completion log.
type pipeline struct {
	engine *Engine
	op     string
	steps  []step
	log    []StepRecord
}

func (e *Engine) newPipeline(op string) *pipeline {
	return &pipeline{engine: e, op: op}
}

// then appends a step. compensate may be nil; when set it must tolerate the
// step having been applied only partly, or not at all.
func (p *pipeline) then(name string, run, compensate func(ctx context.Context) error) *pipeline {
	p.steps = append(p.steps, step{name: name, run: run, compensate: compensate})
	return p
}

func (p *pipeline) record(name string, status StepStatus, err error) {
	r := StepRecord{Step: name, Status: status, At: time.Now().UTC()}
	if err != nil {
		r.Err = err.Error()
	}
	p.log = append(p.log, r)
}

func (p *pipeline) run(ctx context.Context) error {
	e := p.engine
	ctx, span := e.tracer.Start(ctx, "tally."+p.op)
	defer span.End()

	for i, s := range p.steps {
		sctx, sspan := e.tracer.Start(ctx, "tally."+p.op+"."+s.name)
		err := s.run(sctx)
		switch {
		case err == nil:
			sspan.End()
			p.record(s.name, StepDone, nil)
			continue
		case errors.Is(err, errHalt):
			sspan.SetAttributes(attribute.Bool("tally.halted", true))
			sspan.End()
			p.record(s.name, StepDone, nil)
			for _, rest := range p.steps[i+1:] {
				p.record(rest.name, StepSkipped, nil)
			}
			e.logger.Debug("operation completed early", "op", p.op, "step", s.name)
			return nil
		}

		sspan.RecordError(err)
		sspan.SetStatus(codes.Error, err.Error())
		sspan.End()
		p.record(s.name, StepFailed, err)

		if e.compensate {
			p.rollback(ctx, i)
		}

		opErr := &OperationError{
			Op:      p.op,
			Step:    s.name,
			Message: failureMessage(err),
			Code:    ErrorCode(err),
			Steps:   p.log,
			Err:     err,
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, opErr.Message)
		e.logger.Error("operation failed",
			"op", p.op,
			"step", s.name,
			"code", opErr.Code,
			"completed", opErr.Completed(),
			"error", err,
		)
		e.plugins.EmitOperationFailed(ctx, p.op, s.name, err)

		return opErr
	}

	e.logger.Debug("operation completed", "op", p.op, "steps", len(p.steps))
	return nil
}

// rollback compensates the failed step and every step before it, newest
// first.
func (p *pipeline) rollback(ctx context.Context, failed int) {
	for i := failed; i >= 0; i-- {
		s := p.steps[i]
		if s.compensate == nil {
			continue
		}
		if err := s.compensate(ctx); err != nil {
			p.record(s.name, StepCompensationFailed, err)
			p.engine.logger.Error("compensation failed",
				"op", p.op,
				"step", s.name,
				"error", err,
			)
			continue
		}
		p.record(s.name, StepCompensated, nil)
	}
}

// failureMessage is the human-readable text shown to whoever triggered the
// operation.
func failureMessage(err error) string {
	var ve ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case IsSequenceConflict(err):
		return "Could not reserve an invoice number. Please retry."
	case IsNotFound(err):
		return "The record no longer exists."
	default:
		return "Connection to the store failed. Please retry."
	}
}

// storeFailure wraps an unclassified backend error as a StoreError so callers
// can tell it is transient.
func storeFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) || IsNotFound(err) || IsValidation(err) || IsSequenceConflict(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Package service orchestrates one question end to end: entity extraction,
// SQL resolution, validation, execution, and answer formatting. Every request
// carries a trail of validation records and per-component timings.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finquery/finquery/internal/answer"
	"github.com/finquery/finquery/internal/engine"
	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/llm"
	"github.com/finquery/finquery/internal/observability"
	"github.com/finquery/finquery/internal/sqlcheck"
	"github.com/finquery/finquery/internal/sqlgen"
)

// Failure kinds surfaced on typed failure outcomes.
const (
	FailureNone      = ""
	FailureNoSQL     = "no_sql"
	FailureExecution = "execution_failed"
)

// Outcome is the terminal result for one question. Success is false for every
// typed failure; the LLM availability error is not an Outcome, it aborts the
// request.
type Outcome struct {
	RequestID  string             `json:"request_id"`
	Question   string             `json:"question"`
	Success    bool               `json:"success"`
	Answer     string             `json:"answer"`
	SQL        string             `json:"sql,omitempty"`
	TemplateID string             `json:"template_id,omitempty"`
	Method     sqlgen.Method      `json:"generation_method,omitempty"`
	Confidence float64            `json:"confidence"`
	Entities   entities.Entities  `json:"entities"`
	Validation []sqlcheck.Record  `json:"validation"`
	Columns    []string           `json:"columns,omitempty"`
	Rows       [][]any            `json:"rows,omitempty"`
	RowCount   int                `json:"row_count"`
	Timings    map[string]float64 `json:"timings_seconds"`
	Failure    string             `json:"failure_kind,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Executor runs validated SQL against the registered relations.
type Executor interface {
	Execute(ctx context.Context, sql string) (engine.Result, error)
}

type Service struct {
	extractor *entities.Extractor
	generator *sqlgen.Generator
	validator *sqlcheck.Validator
	engine    Executor
	logger    *slog.Logger
}

func New(extractor *entities.Extractor, generator *sqlgen.Generator, validator *sqlcheck.Validator, eng Executor, logger *slog.Logger) (*Service, error) {
	if extractor == nil {
		return nil, fmt.Errorf("entity extractor is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("sql generator is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("sql validator is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		generator: generator,
		validator: validator,
		engine:    eng,
		logger:    logger,
	}, nil
}

// Ask runs the full pipeline for one question. Typed failures come back as an
// Outcome with Success=false; only the LLM availability error is returned as
// an error, aborting the request early.
func (s *Service) Ask(ctx context.Context, question string) (Outcome, error) {
	start := time.Now()
	outcome := Outcome{
		RequestID: newRequestID(),
		Question:  question,
		Timings:   map[string]float64{},
	}
	logger := s.logger.With(slog.String("request_id", outcome.RequestID))

	extractStart := time.Now()
	ents := s.extractor.Extract(question)
	outcome.Entities = ents
	outcome.Timings["entity_extraction"] = time.Since(extractStart).Seconds()
	logger.Info("entities extracted",
		slog.Any("companies", ents.Companies),
		slog.Any("sectors", ents.Sectors),
		slog.Any("metrics", ents.Metrics),
		slog.String("question_type", string(ents.QuestionType)),
	)

	generateStart := time.Now()
	generated, records, err := s.generator.Generate(ctx, question, ents)
	outcome.Validation = records
	outcome.Timings["sql_generation"] = time.Since(generateStart).Seconds()
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			observability.ObserveAsk(time.Since(start), "llm_unavailable")
			return Outcome{}, fmt.Errorf("resolve question: %w", err)
		}
		logger.Warn("no sql produced", slog.String("error", err.Error()))
		observability.ObserveAsk(time.Since(start), FailureNoSQL)
		outcome.Failure = FailureNoSQL
		outcome.Error = err.Error()
		outcome.Answer = "I couldn't answer that question. Try rephrasing it or asking about company sectors, CIKs, or sector counts."
		return outcome, nil
	}

	outcome.SQL = generated.SQL
	outcome.TemplateID = generated.TemplateID
	outcome.Method = generated.Method
	outcome.Confidence = generated.Confidence
	logger.Info("sql generated",
		slog.String("template_id", generated.TemplateID),
		slog.String("method", string(generated.Method)),
		slog.Float64("confidence", generated.Confidence),
	)

	execStart := time.Now()
	result, err := s.engine.Execute(ctx, generated.SQL)
	outcome.Timings["query_execution"] = time.Since(execStart).Seconds()
	if err != nil {
		logger.Error("query execution failed", slog.String("error", err.Error()))
		observability.ObserveAsk(time.Since(start), FailureExecution)
		outcome.Failure = FailureExecution
		outcome.Error = err.Error()
		outcome.Answer = "There was an error querying the data. Please try again or rephrase your question."
		return outcome, nil
	}

	outcome.Columns = result.Columns
	outcome.Rows = result.Rows
	outcome.RowCount = result.RowCount

	formatStart := time.Now()
	outcome.Answer = answer.Format(result, ents)
	outcome.Timings["response_formatting"] = time.Since(formatStart).Seconds()

	outcome.Success = true
	observability.ObserveAsk(time.Since(start), FailureNone)
	logger.Info("question answered",
		slog.Int("row_count", result.RowCount),
		slog.Duration("elapsed", time.Since(start)),
	)
	return outcome, nil
}

// RunSQL validates a caller-supplied statement and executes it on acceptance.
// The statement goes through the same two-stage validator as generated SQL.
func (s *Service) RunSQL(ctx context.Context, sql string) (engine.Result, []sqlcheck.Record, error) {
	result, records := s.validator.Validate(ctx, sql, "", entities.Entities{})
	if !result.Accepted {
		return engine.Result{}, records, fmt.Errorf("sql rejected: %s", result.Reason)
	}
	executed, err := s.engine.Execute(ctx, sql)
	if err != nil {
		return engine.Result{}, records, fmt.Errorf("execute sql: %w", err)
	}
	return executed, records, nil
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

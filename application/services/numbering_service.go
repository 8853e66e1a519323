package services

import (
	"context"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/numbering"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"go.uber.org/zap"
)

// Well-known sequence names.
const (
	SequenceInvoice  = "invoice"
	SequenceOffer    = "offer"
	SequenceCustomer = "customer"
)

// SequenceConfig pairs how a number looks with how often it resets.
type SequenceConfig struct {
	Template          string
	IncrementTemplate string
}

// DefaultSequences is the out-of-the-box numbering configuration.
func DefaultSequences() map[string]SequenceConfig {
	return map[string]SequenceConfig{
		SequenceInvoice:  {Template: "[INV]-YYYY-####", IncrementTemplate: "YYYY-####"},
		SequenceOffer:    {Template: "[OFF]-YYYY-####", IncrementTemplate: "YYYY-####"},
		SequenceCustomer: {Template: "[CUS]-#####", IncrementTemplate: "#####"},
	}
}

// maxSwapAttempts bounds the compare-and-swap retry loop before a conflict is
// surfaced to the caller.
const maxSwapAttempts = 5

// NumberingService issues collision-free document numbers. The pure engine in
// domain/numbering derives the next value; this service wraps it in the
// atomic read-modify-write the concurrency contract requires: read the last
// issued value, compute the next, and persist it with a compare-and-swap,
// retrying a bounded number of times when a concurrent issuer wins the race.
type NumberingService struct {
	store     ports.SequenceStore
	sequences map[string]SequenceConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewNumberingService creates a numbering service. Passing nil sequences
// installs DefaultSequences.
func NewNumberingService(store ports.SequenceStore, sequences map[string]SequenceConfig, logger *zap.Logger) *NumberingService {
	if sequences == nil {
		sequences = DefaultSequences()
	}
	return &NumberingService{
		store:     store,
		sequences: sequences,
		logger:    logger,
		now:       time.Now,
	}
}

// NextNumber issues the next number of the named sequence and persists it as
// the new last-issued value. Two concurrent callers never receive the same
// number.
func (s *NumberingService) NextNumber(ctx context.Context, sequence string) (string, error) {
	cfg, ok := s.sequences[sequence]
	if !ok {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown sequence '%s'", sequence))
	}

	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		last, err := s.store.Last(ctx, sequence)
		if err != nil {
			return "", err
		}

		next := numbering.Next(cfg.Template, cfg.IncrementTemplate, last, s.now())

		err = s.store.CompareAndSwap(ctx, sequence, last, next)
		if err == nil {
			return next, nil
		}
		if !pkgerrors.IsConflict(err) {
			return "", err
		}
		s.logger.Debug("sequence swap lost race, retrying",
			zap.String("sequence", sequence),
			zap.Int("attempt", attempt),
		)
	}
	return "", pkgerrors.NewConflictError(fmt.Sprintf("sequence '%s' is under heavy contention", sequence))
}

// PeekNumber computes what the next number would be without committing it.
func (s *NumberingService) PeekNumber(ctx context.Context, sequence string) (string, error) {
	cfg, ok := s.sequences[sequence]
	if !ok {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown sequence '%s'", sequence))
	}
	last, err := s.store.Last(ctx, sequence)
	if err != nil {
		return "", err
	}
	return numbering.Next(cfg.Template, cfg.IncrementTemplate, last, s.now()), nil
}

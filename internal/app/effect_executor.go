// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/filedupe/internal/core/effects"
	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/ports/secondary"
)

// ExecutionResult accumulates what a run of effects touched.
type ExecutionResult struct {
	RecordsSaved int
	HistoryRows  int64
	UsageChanges int
	ItemsDeleted int
	// PendingRemovals lists content locators to remove once the surrounding
	// transaction has committed.
	PendingRemovals []string
}

func (r *ExecutionResult) merge(other *ExecutionResult) {
	r.RecordsSaved += other.RecordsSaved
	r.HistoryRows += other.HistoryRows
	r.UsageChanges += other.UsageChanges
	r.ItemsDeleted += other.ItemsDeleted
	r.PendingRemovals = append(r.PendingRemovals, other.PendingRemovals...)
}

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) (*ExecutionResult, error)
}

// DefaultEffectExecutor implements EffectExecutor against the secondary ports.
// Every store call uses the ctx it is given, so effects executed inside
// Transactor.WithinTx join that transaction.
type DefaultEffectExecutor struct {
	records secondary.RecordStore
	history secondary.HistoryWriter
	usage   secondary.UsageAdjuster
	items   secondary.ItemCatalog
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(
	records secondary.RecordStore,
	history secondary.HistoryWriter,
	usage secondary.UsageAdjuster,
	items secondary.ItemCatalog,
) *DefaultEffectExecutor {
	return &DefaultEffectExecutor{
		records: records,
		history: history,
		usage:   usage,
		items:   items,
	}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) (*ExecutionResult, error) {
	result := &ExecutionResult{}
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff, result); err != nil {
			return result, fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return result, nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect, result *ExecutionResult) error {
	switch typed := eff.(type) {
	case effects.SaveRecordEffect:
		return e.executeSave(ctx, typed, result)
	case effects.HistoryUpdateEffect:
		return e.executeHistory(ctx, typed, result)
	case effects.UsageEffect:
		return e.executeUsage(ctx, typed, result)
	case effects.DeleteItemEffect:
		return e.executeDelete(ctx, typed, result)
	case effects.CompositeEffect:
		nested, err := e.Execute(ctx, typed.Effects)
		result.merge(nested)
		return err
	case effects.LogEffect:
		e.log(ctx, typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeSave(ctx context.Context, eff effects.SaveRecordEffect, result *ExecutionResult) error {
	record := &secondary.LiveRecord{
		RecordType: eff.RecordType,
		RecordID:   eff.RecordID,
		RevisionID: eff.RevisionID,
		Fields:     eff.Fields,
	}
	if err := e.records.Save(ctx, record); err != nil {
		return err
	}
	result.RecordsSaved++
	return nil
}

func (e *DefaultEffectExecutor) executeHistory(ctx context.Context, eff effects.HistoryUpdateEffect, result *ExecutionResult) error {
	n, err := e.history.RewriteHistory(ctx, secondary.HistoryUpdate{
		Table:           eff.Table,
		Column:          eff.Column,
		IDColumn:        eff.IDColumn,
		VersionColumn:   eff.VersionColumn,
		RecordID:        eff.RecordID,
		ExcludeRevision: eff.ExcludeRevision,
		From:            eff.From,
		To:              eff.To,
	})
	if err != nil {
		return err
	}
	result.HistoryRows += n
	return nil
}

func (e *DefaultEffectExecutor) executeUsage(ctx context.Context, eff effects.UsageEffect, result *ExecutionResult) error {
	ref := secondary.ReferencingRecord{
		OwnerModule: eff.OwnerModule,
		RecordType:  eff.RecordType,
		RecordID:    eff.RecordID,
	}

	var err error
	switch eff.Operation {
	case effects.UsageZero:
		err = e.usage.Zero(ctx, ref, eff.ItemID)
	case effects.UsageDecrement:
		err = e.usage.Decrement(ctx, ref, eff.ItemID, eff.Count)
	case effects.UsageIncrement:
		err = e.usage.Increment(ctx, ref, eff.ItemID, eff.Count)
	default:
		return fmt.Errorf("unknown usage operation: %s", eff.Operation)
	}
	if err != nil {
		return err
	}
	result.UsageChanges++
	return nil
}

func (e *DefaultEffectExecutor) executeDelete(ctx context.Context, eff effects.DeleteItemEffect, result *ExecutionResult) error {
	if err := e.items.Delete(ctx, eff.ItemID); err != nil {
		return err
	}
	result.ItemsDeleted++
	if !eff.RemoveContent || eff.Locator == "" {
		return nil
	}

	// Items may share a locator; content stays while any of them remains.
	shared, err := e.items.ExistsByLocator(ctx, eff.Locator)
	if err != nil {
		return err
	}
	if shared {
		logger := logging.ForContext(ctx, "executor")
		logger.Info().Int64("fid", eff.ItemID).Str("locator", eff.Locator).Msg("Content still in use, keeping it")
		return nil
	}
	result.PendingRemovals = append(result.PendingRemovals, eff.Locator)
	return nil
}

func (e *DefaultEffectExecutor) log(ctx context.Context, eff effects.LogEffect) {
	level, err := zerolog.ParseLevel(eff.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := logging.ForContext(ctx, "executor")
	event := logger.WithLevel(level)
	for k, v := range eff.Fields {
		event = event.Interface(k, v)
	}
	event.Msg(eff.Message)
}

// Ensure DefaultEffectExecutor implements the interface.
var _ EffectExecutor = (*DefaultEffectExecutor)(nil)

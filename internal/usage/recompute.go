package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumichat/billing/internal/costing"
	"github.com/lumichat/billing/internal/ledger"
	"github.com/lumichat/billing/internal/models"
	"github.com/lumichat/billing/internal/pricing"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxRecomputeAttempts bounds retries on transient write conflicts
// (two triggers racing on the same message or the same daily row).
const maxRecomputeAttempts = 3

// Recomputer recomputes the cost of an assistant message and folds the
// resulting delta into the owner's daily aggregate. Both trigger call
// sites (assistant-reply creation and user-attachment linking) converge
// here, which is what makes the operation safe to invoke repeatedly.
type Recomputer struct {
	db         *gorm.DB
	catalog    pricing.Catalog
	anonSecret string
}

// NewRecomputer constructs a Recomputer.
func NewRecomputer(db *gorm.DB, catalog pricing.Catalog, anonSecret string) *Recomputer {
	return &Recomputer{db: db, catalog: catalog, anonSecret: anonSecret}
}

// Recompute resolves the assistant message behind messageID (either the
// assistant message's own UUID or that of the triggering user message),
// recomputes its cost from current pricing, replaces the stored cost
// row, and applies the total-cost delta to the owner's day.
//
// No assistant message yet is not an error: attachments can legally be
// linked before the reply exists, so that case is a silent no-op.
func (r *Recomputer) Recompute(ctx context.Context, messageID string) error {
	if r == nil || r.db == nil || r.catalog == nil {
		return errors.New("usage: recomputer not initialized")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return errors.New("usage: empty message id")
	}

	msg, errResolve := r.resolveAssistantMessage(ctx, messageID)
	if errResolve != nil {
		return fmt.Errorf("usage: resolve %s: %w", messageID, errResolve)
	}
	if msg == nil {
		return nil
	}

	snapshot, errPricing := r.catalog.GetPricing(ctx, msg.ModelID)
	if errPricing != nil {
		return fmt.Errorf("usage: pricing %s: %w", msg.ModelID, errPricing)
	}

	input, errGather := r.gatherQuantities(ctx, msg, snapshot)
	if errGather != nil {
		return fmt.Errorf("usage: gather %s: %w", msg.PublicID, errGather)
	}

	breakdown := costing.ComputeCost(input)
	provenance, errProv := costing.BuildProvenance(msg.ModelID, input, breakdown, snapshot.WebSearchFallback, snapshot.OutputImageFallback).JSON()
	if errProv != nil {
		return fmt.Errorf("usage: provenance %s: %w", msg.PublicID, errProv)
	}

	linkage := ledger.Linkage{
		UserMessageID: msg.UserMessageID,
		SessionID:     msg.SessionID,
		UserID:        msg.UserID,
		CompletionID:  msg.CompletionID,
		ModelID:       msg.ModelID,
	}
	owner := OwnerForMessage(r.anonSecret, msg)
	day := DayOf(time.Now())

	var lastErr error
	for attempt := 1; attempt <= maxRecomputeAttempts; attempt++ {
		errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result, errUpsert := ledger.UpsertCost(ctx, tx, msg.PublicID, breakdown, input.Pricing, linkage, provenance)
			if errUpsert != nil {
				return errUpsert
			}
			delta := result.NewTotal.Sub(result.PreviousTotal)
			return ApplyCostDelta(ctx, tx, owner, day, delta)
		})
		if errTx == nil {
			return nil
		}
		lastErr = errTx
		if !isWriteConflict(errTx) {
			break
		}
		log.WithError(errTx).WithField("assistant_message_id", msg.PublicID).
			Warnf("usage: recompute conflict, attempt %d/%d", attempt, maxRecomputeAttempts)
	}
	return fmt.Errorf("usage: recompute %s: %w", msg.PublicID, lastErr)
}

// resolveAssistantMessage finds the billable assistant message for an
// identifier: the message itself when it is a successful assistant
// reply, otherwise the latest successful reply linked to it as a user
// message. Returns nil when no such message exists.
func (r *Recomputer) resolveAssistantMessage(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	errDirect := r.db.WithContext(ctx).
		Where("public_id = ? AND role = ? AND has_error = ?", messageID, models.RoleAssistant, false).
		Take(&msg).Error
	if errDirect == nil {
		return &msg, nil
	}
	if !errors.Is(errDirect, gorm.ErrRecordNotFound) {
		return nil, errDirect
	}

	errLinked := r.db.WithContext(ctx).
		Where("user_message_id = ? AND role = ? AND has_error = ?", messageID, models.RoleAssistant, false).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if errLinked == nil {
		return &msg, nil
	}
	if errors.Is(errLinked, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, errLinked
}

// gatherQuantities assembles the calculator input for an assistant
// message: token counts from the message row, input image units from
// ready attachments on the triggering user message (capped), output
// image units from assistant-sourced attachments on the reply itself
// (uncapped).
func (r *Recomputer) gatherQuantities(ctx context.Context, msg *models.Message, snapshot pricing.Snapshot) (costing.CostInput, error) {
	input := costing.CostInput{
		PromptTokens:      msg.InputTokens,
		CompletionTokens:  msg.OutputTokens,
		OutputImageTokens: msg.OutputImageTokens,
		WebSearchUsed:     msg.WebSearchUsed,
		WebSearchResults:  msg.WebSearchResults,
		Pricing:           snapshot.Pricing,
	}

	if msg.UserMessageID != nil && *msg.UserMessageID != "" {
		var count int64
		if errCount := r.db.WithContext(ctx).
			Model(&models.Attachment{}).
			Where("message_id = ? AND status = ? AND source = ?", *msg.UserMessageID, models.AttachmentStatusReady, models.AttachmentSourceUser).
			Count(&count).Error; errCount != nil {
			return input, errCount
		}
		if count > costing.MaxBillableInputImages {
			count = costing.MaxBillableInputImages
		}
		input.InputImageUnits = count
	}

	var outputCount int64
	if errCount := r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Where("message_id = ? AND status = ? AND source = ?", msg.PublicID, models.AttachmentStatusReady, models.AttachmentSourceAssistant).
		Count(&outputCount).Error; errCount != nil {
		return input, errCount
	}
	input.OutputImageUnits = outputCount

	return input, nil
}

// isWriteConflict reports whether an error looks like a transient
// uniqueness or serialization conflict worth retrying.
func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "could not serialize")
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	affiliatedto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/affiliate"
	"github.com/jaevor/go-nanoid"
)

const (
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength   = 8
	referralCodeAttempts = 5
)

type ReferralGraphUsecase interface {
	Enroll(ctx context.Context, input *affiliatedto.EnrollInput) (*domain.Affiliate, error)
	GetAffiliate(ctx context.Context, affiliateID string) (*domain.Affiliate, error)
	AttachChild(ctx context.Context, parentID, childID string) error
	ReparentOverride(ctx context.Context, input *affiliatedto.ReparentInput) error
	ResolveUpline(ctx context.Context, affiliateID string, maxDepth int) ([]domain.UplineNode, error)
	ListDownline(ctx context.Context, affiliateID string, page, limit int64) ([]*domain.Affiliate, int64, error)
	SetStatus(ctx context.Context, input *affiliatedto.SetStatusInput) error
}

type DefaultReferralGraphUsecase struct {
	AffiliateRepo domain.AffiliateRepository
	AutoActivate  bool
	logger        *slog.Logger
	codeGenerator func() string
}

func NewDefaultReferralGraphUsecase(affiliateRepo domain.AffiliateRepository, autoActivate bool, logger *slog.Logger) (*DefaultReferralGraphUsecase, error) {
	codeGenerator, err := nanoid.CustomASCII(referralCodeAlphabet, referralCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to init referral code generator: %w", err)
	}
	return &DefaultReferralGraphUsecase{
		AffiliateRepo: affiliateRepo,
		AutoActivate:  autoActivate,
		logger:        logger,
		codeGenerator: codeGenerator,
	}, nil
}

func (uc *DefaultReferralGraphUsecase) Enroll(ctx context.Context, input *affiliatedto.EnrollInput) (*domain.Affiliate, error) {
	var parentID *string
	switch {
	case input.ParentID != "":
		parent, err := uc.AffiliateRepo.GetAffiliateByID(ctx, input.ParentID)
		if err != nil {
			return nil, err
		}
		parentID = &parent.ID
	case input.ParentCode != "":
		parent, err := uc.AffiliateRepo.GetAffiliateByCode(ctx, input.ParentCode)
		if err != nil {
			return nil, err
		}
		parentID = &parent.ID
	}

	status := domain.AffiliatePending
	if uc.AutoActivate {
		status = domain.AffiliateActive
	}

	// a fresh affiliate has no descendants, so attaching it at creation cannot close a cycle
	for attempt := 1; ; attempt++ {
		affiliate := &domain.Affiliate{
			AccountID:    input.AccountID,
			ReferralCode: uc.codeGenerator(),
			ParentID:     parentID,
			Status:       status,
		}
		err := uc.AffiliateRepo.CreateAffiliate(ctx, affiliate)
		if err == nil {
			uc.logger.Info("affiliate enrolled", "affiliate_id", affiliate.ID, "code", affiliate.ReferralCode, "has_parent", parentID != nil)
			return affiliate, nil
		}
		if !errors.Is(err, domain.ErrReferralCodeTaken) || attempt >= referralCodeAttempts {
			return nil, err
		}
		uc.logger.Warn("referral code collision, regenerating", "attempt", attempt)
	}
}

func (uc *DefaultReferralGraphUsecase) GetAffiliate(ctx context.Context, affiliateID string) (*domain.Affiliate, error) {
	return uc.AffiliateRepo.GetAffiliateByID(ctx, affiliateID)
}

// AttachChild sets the parent of an orphan affiliate. Nothing is written when the link would close a cycle.
func (uc *DefaultReferralGraphUsecase) AttachChild(ctx context.Context, parentID, childID string) error {
	if parentID == childID {
		return domain.ErrCycleDetected
	}
	return uc.AffiliateRepo.WithGraphLock(ctx, []string{parentID, childID}, func(tx domain.AffiliateGraphTx) error {
		child, err := tx.GetAffiliateByID(ctx, childID)
		if err != nil {
			return err
		}
		if child.HasParent() {
			return domain.ErrAlreadyHasParent
		}
		if err := ensureNoCycle(ctx, tx, parentID, childID); err != nil {
			return err
		}
		return tx.SetParent(ctx, childID, &parentID)
	})
}

func (uc *DefaultReferralGraphUsecase) ReparentOverride(ctx context.Context, input *affiliatedto.ReparentInput) error {
	if input.AdminID == "" {
		return domain.ErrUnauthorized
	}
	if input.NewParentID == input.ChildID {
		return domain.ErrCycleDetected
	}

	err := uc.AffiliateRepo.WithGraphLock(ctx, []string{input.ChildID, input.NewParentID}, func(tx domain.AffiliateGraphTx) error {
		child, err := tx.GetAffiliateByID(ctx, input.ChildID)
		if err != nil {
			return err
		}
		oldParent := ""
		if child.HasParent() {
			oldParent = *child.ParentID
		}

		var newParent *string
		if input.NewParentID != "" {
			if err := ensureNoCycle(ctx, tx, input.NewParentID, input.ChildID); err != nil {
				return err
			}
			newParent = &input.NewParentID
		}
		if err := tx.SetParent(ctx, input.ChildID, newParent); err != nil {
			return err
		}

		return tx.CreateAuditLog(ctx, &domain.AffiliateAuditLog{
			AffiliateID: input.ChildID,
			ActorID:     input.AdminID,
			Action:      "reparent",
			Reason:      input.Reason,
			Metadata: map[string]string{
				"old_parent_id": oldParent,
				"new_parent_id": input.NewParentID,
			},
		})
	})
	if err != nil {
		return err
	}

	uc.logger.Info("affiliate reparented", "affiliate_id", input.ChildID, "new_parent_id", input.NewParentID, "admin_id", input.AdminID)
	return nil
}

// ensureNoCycle walks up from startID; reaching childID or any node twice means linking childID under startID closes a cycle.
func ensureNoCycle(ctx context.Context, tx domain.AffiliateGraphTx, startID, childID string) error {
	visited := make(map[string]struct{})
	current := startID
	for {
		if current == childID {
			return domain.ErrCycleDetected
		}
		if _, seen := visited[current]; seen {
			return domain.ErrCycleDetected
		}
		visited[current] = struct{}{}

		node, err := tx.GetAffiliateByID(ctx, current)
		if err != nil {
			return err
		}
		if !node.HasParent() {
			return nil
		}
		current = *node.ParentID
	}
}

// ResolveUpline returns the affiliate itself at level 1 followed by its ancestors, closest first.
func (uc *DefaultReferralGraphUsecase) ResolveUpline(ctx context.Context, affiliateID string, maxDepth int) ([]domain.UplineNode, error) {
	upline := make([]domain.UplineNode, 0, maxDepth)
	visited := make(map[string]struct{}, maxDepth)

	current := affiliateID
	for level := 1; level <= maxDepth; level++ {
		if _, seen := visited[current]; seen {
			return nil, fmt.Errorf("%w: affiliate %s revisited at level %d", domain.ErrCycleDetected, current, level)
		}
		visited[current] = struct{}{}

		affiliate, err := uc.AffiliateRepo.GetAffiliateByID(ctx, current)
		if err != nil {
			return nil, err
		}
		upline = append(upline, domain.UplineNode{Affiliate: affiliate, Level: level})

		if !affiliate.HasParent() {
			break
		}
		current = *affiliate.ParentID
	}
	return upline, nil
}

func (uc *DefaultReferralGraphUsecase) ListDownline(ctx context.Context, affiliateID string, page, limit int64) ([]*domain.Affiliate, int64, error) {
	if _, err := uc.AffiliateRepo.GetAffiliateByID(ctx, affiliateID); err != nil {
		return nil, 0, err
	}
	return uc.AffiliateRepo.GetChildren(ctx, affiliateID, page, limit)
}

func (uc *DefaultReferralGraphUsecase) SetStatus(ctx context.Context, input *affiliatedto.SetStatusInput) error {
	if input.AdminID == "" {
		return domain.ErrUnauthorized
	}
	status := domain.AffiliateStatus(input.Status)
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}

	if err := uc.AffiliateRepo.UpdateStatus(ctx, input.AffiliateID, status, input.Reason); err != nil {
		return err
	}

	if err := uc.AffiliateRepo.CreateAuditLog(ctx, &domain.AffiliateAuditLog{
		AffiliateID: input.AffiliateID,
		ActorID:     input.AdminID,
		Action:      "status_change",
		Reason:      input.Reason,
		Metadata:    map[string]string{"status": string(status)},
	}); err != nil {
		uc.logger.Error("failed to write affiliate audit log", "affiliate_id", input.AffiliateID, "error", err)
	}

	uc.logger.Info("affiliate status changed", "affiliate_id", input.AffiliateID, "status", status, "admin_id", input.AdminID)
	return nil
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/repository"
	affiliatedto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/affiliate"
	clickdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/click"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClickTracker_FirstTouchWithinWindow(t *testing.T) {
	graph, db := newGraph(t, true)
	ctx := context.Background()
	settings := domain.CommissionSettings{AttributionWindow: 24 * time.Hour}
	clicks := NewDefaultClickUsecase(repository.NewDefaultClickRepository(db), graph.AffiliateRepo, func() domain.CommissionSettings { return settings })

	first := enroll(t, graph, "acc-first", nil)
	second := enroll(t, graph, "acc-second", nil)

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clicks.now = func() time.Time { return start }
	click, err := clicks.RecordClick(ctx, &clickdto.RecordClickInput{
		Code: first.ReferralCode, VisitorToken: "visitor-1", IP: "10.0.0.1", UserAgent: "curl", LandingURL: "/hotels",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, click.AffiliateID)
	assert.True(t, click.ExpiresAt.Equal(start.Add(24*time.Hour)))
	assert.Len(t, click.IPHash, 64)
	assert.NotContains(t, click.IPHash, "10.0.0.1")

	clicks.now = func() time.Time { return start.Add(time.Hour) }
	_, err = clicks.RecordClick(ctx, &clickdto.RecordClickInput{Code: second.ReferralCode, VisitorToken: "visitor-1"})
	require.NoError(t, err)

	affiliateID, ok, err := clicks.ResolveAttribution(ctx, "visitor-1", start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.ID, affiliateID)

	// the first click expired, the second still covers the instant
	affiliateID, ok, err = clicks.ResolveAttribution(ctx, "visitor-1", start.Add(24*time.Hour+30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, second.ID, affiliateID)

	_, ok, err = clicks.ResolveAttribution(ctx, "visitor-1", start.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = clicks.ResolveAttribution(ctx, "stranger", start)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClickTracker_RejectsBadClicks(t *testing.T) {
	graph, db := newGraph(t, true)
	ctx := context.Background()
	clicks := NewDefaultClickUsecase(repository.NewDefaultClickRepository(db), graph.AffiliateRepo, func() domain.CommissionSettings {
		return domain.CommissionSettings{AttributionWindow: time.Hour}
	})
	affiliate := enroll(t, graph, "acc-a", nil)

	_, err := clicks.RecordClick(ctx, &clickdto.RecordClickInput{Code: affiliate.ReferralCode, VisitorToken: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidClick)

	_, err = clicks.RecordClick(ctx, &clickdto.RecordClickInput{Code: "UNKNOWN2", VisitorToken: "v"})
	assert.ErrorIs(t, err, domain.ErrAffiliateNotFound)

	require.NoError(t, graph.SetStatus(ctx, &affiliatedto.SetStatusInput{AdminID: "admin-1", AffiliateID: affiliate.ID, Status: "BANNED"}))
	_, err = clicks.RecordClick(ctx, &clickdto.RecordClickInput{Code: affiliate.ReferralCode, VisitorToken: "v"})
	assert.ErrorIs(t, err, domain.ErrAffiliateInactive)
}

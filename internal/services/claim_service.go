package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
	"collab-service/internal/observability"
	"collab-service/internal/repositories"
)

const (
	MaxItemsPerAdd      = 1000
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// ClaimResult is what a successful claim hands back to the caller.
type ClaimResult struct {
	Items         []models.ClaimedItem `json:"items"`
	CooldownUntil time.Time            `json:"cooldown_until"`
	Remaining     int                  `json:"remaining"`
}

// ClaimService hands out queued items to team members. Exclusivity comes
// from the repository; this type never locks.
type ClaimService struct {
	users           repositories.UserRepository
	claims          repositories.ClaimRepository
	settings        *SettingsService
	notifier        Notifier
	auditor         Auditor
	logger          *zap.Logger
	now             func() time.Time
	enforceCooldown bool
}

type ClaimOption func(*ClaimService)

func WithClaimNotifier(n Notifier) ClaimOption {
	return func(s *ClaimService) { s.notifier = n }
}

func WithClaimAuditor(a Auditor) ClaimOption {
	return func(s *ClaimService) { s.auditor = a }
}

func WithClaimLogger(l *zap.Logger) ClaimOption {
	return func(s *ClaimService) { s.logger = l }
}

func WithClaimClock(now func() time.Time) ClaimOption {
	return func(s *ClaimService) { s.now = now }
}

// WithCooldownEnforcement toggles rejecting claims while a previous claim is cooling down.
func WithCooldownEnforcement(on bool) ClaimOption {
	return func(s *ClaimService) { s.enforceCooldown = on }
}

func NewClaimService(users repositories.UserRepository, claims repositories.ClaimRepository, settings *SettingsService, opts ...ClaimOption) *ClaimService {
	s := &ClaimService{
		users:           users,
		claims:          claims,
		settings:        settings,
		notifier:        nopNotifier{},
		auditor:         nopAuditor{},
		logger:          zap.NewNop(),
		now:             time.Now,
		enforceCooldown: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Claim assigns up to the team's line count of the oldest queued items to userID.
func (s *ClaimService) Claim(ctx context.Context, teamID, userID string) (ClaimResult, error) {
	ctx, span := otel.Tracer("collab-service/claims").Start(ctx, "claims.claim")
	defer span.End()
	span.SetAttributes(attribute.String("team_id", teamID), attribute.String("user_id", userID))

	result, err := s.claim(ctx, teamID, userID)
	if err != nil {
		outcome := string(apperr.KindOf(err))
		observability.ObserveClaim(outcome, 0)
		if apperr.Is(err, apperr.KindTransport) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "claim failed")
			s.logger.Error("claim failed", zap.String("team_id", teamID), zap.String("user_id", userID), zap.Error(err))
		}
		return ClaimResult{}, err
	}
	span.SetAttributes(attribute.Int("items", len(result.Items)))
	observability.ObserveClaim("claimed", len(result.Items))
	return result, nil
}

func (s *ClaimService) claim(ctx context.Context, teamID, userID string) (ClaimResult, error) {
	user, err := s.users.GetUser(ctx, teamID, userID)
	if err != nil {
		return ClaimResult{}, repoError(err, "load user")
	}
	settings, err := s.settings.Get(ctx, teamID)
	if err != nil {
		return ClaimResult{}, err
	}

	now := s.now().UTC()
	if s.enforceCooldown {
		until, ok, err := s.claims.LatestCooldown(ctx, teamID, userID)
		if err != nil {
			return ClaimResult{}, repoError(err, "load cooldown")
		}
		if ok && until.After(now) {
			return ClaimResult{}, apperr.Cooldown(until.Sub(now))
		}
	}

	cooldownUntil := now.Add(settings.Cooldown())
	items, err := s.claims.ClaimQueued(ctx, teamID, settings.LineCount, models.Claimant{UserID: userID, Name: user.Name}, now, cooldownUntil)
	if err != nil {
		return ClaimResult{}, repoError(err, "claim items")
	}
	if len(items) == 0 {
		return ClaimResult{}, apperr.NoItems()
	}

	remaining, err := s.claims.CountQueued(ctx, teamID)
	if err != nil {
		// the claim is committed; a stale count only affects the event
		s.logger.Warn("count queue after claim", zap.String("team_id", teamID), zap.Error(err))
	}

	s.notifier.NotifyQueueChanged(ctx, models.QueueChange{
		TeamID:    teamID,
		Reason:    "claimed",
		Claimed:   len(items),
		ActorID:   userID,
		Remaining: remaining,
	})
	s.auditor.Record(ctx, auditEntry(ctx, "info", "items claimed", teamID, userID, map[string]string{
		"items":          strconv.Itoa(len(items)),
		"cooldown_until": cooldownUntil.Format(time.RFC3339),
	}))
	return ClaimResult{Items: items, CooldownUntil: cooldownUntil, Remaining: remaining}, nil
}

// Reconcile drops queue rows whose claim was recorded but whose removal did
// not complete.
func (s *ClaimService) Reconcile(ctx context.Context) (int, error) {
	n, err := s.claims.RemoveClaimedFromQueue(ctx)
	if err != nil {
		return 0, repoError(err, "reconcile queue")
	}
	if n > 0 {
		observability.AddReconciled(n)
		s.logger.Warn("removed already claimed queue items", zap.Int("count", n))
	}
	return n, nil
}

// ListClaimed returns the items the user currently holds.
func (s *ClaimService) ListClaimed(ctx context.Context, teamID, userID string) ([]models.ClaimedItem, error) {
	items, err := s.claims.ListClaimed(ctx, teamID, userID)
	if err != nil {
		return nil, repoError(err, "list claimed")
	}
	if items == nil {
		items = []models.ClaimedItem{}
	}
	return items, nil
}

// Release drops the user's claimed items, all of them when ids is empty.
// History is kept.
func (s *ClaimService) Release(ctx context.Context, teamID, userID string, ids []string) (int, error) {
	n, err := s.claims.ReleaseClaimed(ctx, teamID, userID, ids)
	if err != nil {
		return 0, repoError(err, "release claimed")
	}
	if n == 0 {
		return 0, nil
	}

	remaining, _ := s.claims.CountQueued(ctx, teamID)
	s.notifier.NotifyQueueChanged(ctx, models.QueueChange{
		TeamID:    teamID,
		Reason:    "released",
		Released:  n,
		ActorID:   userID,
		Remaining: remaining,
	})
	return n, nil
}

// ListHistory returns the newest claim records of the team.
func (s *ClaimService) ListHistory(ctx context.Context, teamID string, limit int) ([]models.HistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	entries, err := s.claims.ListHistory(ctx, teamID, limit)
	if err != nil {
		return nil, repoError(err, "list history")
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return entries, nil
}

// AddItems appends non-blank lines to the team queue in order.
func (s *ClaimService) AddItems(ctx context.Context, teamID, userID string, lines []string) (int, error) {
	now := s.now().UTC()
	items := make([]models.QueuedItem, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, models.QueuedItem{
			ID:      uuid.NewString(),
			TeamID:  teamID,
			Content: line,
			AddedBy: userID,
			AddedAt: now,
		})
	}
	if len(items) == 0 {
		return 0, apperr.Validation("at least one non-empty line is required")
	}
	if len(items) > MaxItemsPerAdd {
		return 0, apperr.Validation("too many lines, max " + strconv.Itoa(MaxItemsPerAdd))
	}

	if err := s.claims.AddQueuedItems(ctx, items); err != nil {
		return 0, repoError(err, "add queue items")
	}
	observability.AddQueueItems(len(items))

	remaining, _ := s.claims.CountQueued(ctx, teamID)
	s.notifier.NotifyQueueChanged(ctx, models.QueueChange{
		TeamID:    teamID,
		Reason:    "added",
		Added:     len(items),
		ActorID:   userID,
		Remaining: remaining,
	})
	s.auditor.Record(ctx, auditEntry(ctx, "info", "queue items added", teamID, userID, map[string]string{
		"items": strconv.Itoa(len(items)),
	}))
	return len(items), nil
}

// QueueStatus reports the queue depth together with the claim settings.
func (s *ClaimService) QueueStatus(ctx context.Context, teamID string) (models.QueueStatus, error) {
	settings, err := s.settings.Get(ctx, teamID)
	if err != nil {
		return models.QueueStatus{}, err
	}
	n, err := s.claims.CountQueued(ctx, teamID)
	if err != nil {
		return models.QueueStatus{}, repoError(err, "count queue")
	}
	return models.QueueStatus{
		TeamID:          teamID,
		Queued:          n,
		LineCount:       settings.LineCount,
		CooldownMinutes: settings.CooldownMinutes,
	}, nil
}

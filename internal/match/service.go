package match

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"lifebank/internal/notify"
	"lifebank/internal/platform/metrics"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
	"lifebank/pkg/platform/audit"
	"lifebank/pkg/platform/sentinel"
	"lifebank/pkg/requestcontext"
)

// ConfirmStatus is the donor-visible outcome of following a confirmation
// link. Races resolve to informational outcomes, never errors: a donor who
// lost a confirm race sees already_matched, one who arrived late sees
// expired.
type ConfirmStatus string

const (
	ConfirmSuccess        ConfirmStatus = "success"
	ConfirmAlreadyMatched ConfirmStatus = "already_matched"
	ConfirmExpired        ConfirmStatus = "expired"
	ConfirmError          ConfirmStatus = "error"
)

// Outcome is returned to the donor on every confirm call, including repeats.
type Outcome struct {
	Status  ConfirmStatus `json:"status"`
	Message string        `json:"message"`
}

// RequestAllocator is the follow-up hook for matches tied to a request: a
// successful confirmation may immediately allocate inventory for it.
type RequestAllocator interface {
	Allocate(ctx context.Context, requestID id.RequestID) ([]id.UnitID, error)
}

// Service owns donation match creation and the confirmation protocol.
type Service struct {
	store          Store
	matchTTL       time.Duration
	confirmBaseURL string
	notifier       notify.Notifier
	allocator      RequestAllocator
	audit          audit.Emitter
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func NewService(
	store Store,
	matchTTL time.Duration,
	confirmBaseURL string,
	notifier notify.Notifier,
	allocator RequestAllocator,
	auditor audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:          store,
		matchTTL:       matchTTL,
		confirmBaseURL: strings.TrimRight(confirmBaseURL, "/"),
		notifier:       notifier,
		allocator:      allocator,
		audit:          auditor,
		metrics:        m,
		logger:         logger,
	}
}

// Create records a pending match and notifies the donor with the
// confirmation link. Notification failure does not roll the match back; the
// outreach can be repeated out of band.
func (s *Service) Create(ctx context.Context, donorID id.DonorID, requestID *id.RequestID) (*DonationMatch, error) {
	token, err := NewToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate match token")
	}
	m, err := NewDonationMatch(id.NewMatchID(), token, donorID, requestID, s.matchTTL, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store match")
	}

	s.audit.Emit(ctx, audit.Event{
		Action:    audit.EventMatchCreated,
		Actor:     requestcontext.UserID(ctx).String(),
		Subject:   m.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})

	link := s.confirmBaseURL + "/confirm/" + m.Token
	if err := s.notifier.Notify(ctx, m.DonorID, m.ID, link, m.ExpiresAt); err != nil {
		s.logger.ErrorContext(ctx, "donor notification failed",
			slog.String("match_id", m.ID.String()), slog.Any("error", err))
	}
	return m, nil
}

// Confirm resolves a donor's click on the confirmation link. At most one
// caller ever sees success; every repeat and every lost race reads the
// winner's terminal status.
func (s *Service) Confirm(ctx context.Context, token string) Outcome {
	outcome := s.confirm(ctx, token)
	s.metrics.CountConfirmation(string(outcome.Status))
	return outcome
}

func (s *Service) confirm(ctx context.Context, token string) Outcome {
	now := requestcontext.Now(ctx)

	m, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Outcome{Status: ConfirmError, Message: "this confirmation link is not recognised"}
		}
		s.logger.ErrorContext(ctx, "match lookup failed", slog.Any("error", err))
		return Outcome{Status: ConfirmError, Message: "confirmation is temporarily unavailable, please try again"}
	}

	switch {
	case m.Status == MatchConfirmed:
		return Outcome{Status: ConfirmAlreadyMatched, Message: "this match was already confirmed"}
	case m.Status == MatchExpired:
		return Outcome{Status: ConfirmExpired, Message: "this match has expired"}
	case m.IsExpired(now):
		// Lazy expiry: the window closed but the sweeper has not recorded it
		// yet. Whoever wins the race, the donor-visible answer is expired.
		if err := s.store.Expire(ctx, token, now); err == nil {
			s.emit(ctx, audit.EventMatchExpired, m.ID, "confirmation attempted after window closed")
		} else if !errors.Is(err, sentinel.ErrConflict) && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "lazy match expiry failed",
				slog.String("match_id", m.ID.String()), slog.Any("error", err))
		}
		return Outcome{Status: ConfirmExpired, Message: "this match has expired"}
	}

	if err := s.store.Confirm(ctx, token, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return s.resolveLostRace(ctx, token)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return Outcome{Status: ConfirmError, Message: "this confirmation link is not recognised"}
		}
		s.logger.ErrorContext(ctx, "match confirmation failed",
			slog.String("match_id", m.ID.String()), slog.Any("error", err))
		return Outcome{Status: ConfirmError, Message: "confirmation is temporarily unavailable, please try again"}
	}

	s.emit(ctx, audit.EventMatchConfirmed, m.ID, "")
	s.followUp(ctx, m)
	return Outcome{Status: ConfirmSuccess, Message: "thank you, your donation match is confirmed"}
}

// resolveLostRace re-reads the match to report which terminal status won.
func (s *Service) resolveLostRace(ctx context.Context, token string) Outcome {
	m, err := s.store.GetByToken(ctx, token)
	if err == nil && m.Status == MatchExpired {
		return Outcome{Status: ConfirmExpired, Message: "this match has expired"}
	}
	return Outcome{Status: ConfirmAlreadyMatched, Message: "this match was already confirmed"}
}

// followUp kicks off allocation when the confirmed match is tied to a
// request. Best effort: insufficient inventory or a resolved request is not
// the donor's problem.
func (s *Service) followUp(ctx context.Context, m *DonationMatch) {
	if m.RequestID == nil || s.allocator == nil {
		return
	}
	if _, err := s.allocator.Allocate(ctx, *m.RequestID); err != nil {
		s.logger.InfoContext(ctx, "post-confirmation allocation not performed",
			slog.String("match_id", m.ID.String()),
			slog.String("request_id", m.RequestID.String()),
			slog.Any("error", err))
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, matchID id.MatchID, reason string) {
	actor := requestcontext.UserID(ctx).String()
	if requestcontext.UserID(ctx).IsNil() {
		actor = "system"
	}
	s.audit.Emit(ctx, audit.Event{
		Action:    action,
		Actor:     actor,
		Subject:   matchID.String(),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phijaro/octo-oauth-demo/internal/auth"
	"github.com/phijaro/octo-oauth-demo/internal/domain"
	"github.com/phijaro/octo-oauth-demo/internal/observability"
	"github.com/phijaro/octo-oauth-demo/internal/redact"
	"github.com/phijaro/octo-oauth-demo/internal/sink"
	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

// TokenExchanger trades an authorization code for tokens.
type TokenExchanger interface {
	Exchange(ctx context.Context, grant auth.Grant) (domain.TokenPair, error)
}

// ClaimsExtractor resolves the identity behind an access token.
type ClaimsExtractor interface {
	Extract(ctx context.Context, accessToken string) (domain.Claims, error)
}

// Deliverer hands a finalized enrollment to every sink.
type Deliverer interface {
	Deliver(ctx context.Context, enrollment domain.Enrollment) sink.Results
}

// Callback is what the provider's redirect carried.
type Callback struct {
	Code          string
	State         string
	ProviderError string
	RedirectURL   string
}

// Outcome describes where one callback ended.
type Outcome struct {
	State        domain.CallbackState
	EnrollmentID string
	View         domain.RedactedView
	Sinks        sink.Results
}

// EnrollmentDependencies encapsulates collaborators of the enrollment service.
type EnrollmentDependencies struct {
	Exchanger TokenExchanger
	Claims    ClaimsExtractor
	Flows     auth.FlowStore
	Sinks     Deliverer
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// EnrollmentService runs the post-authorization pipeline:
// exchange, extract claims, redact, fan out.
type EnrollmentService struct {
	exchanger TokenExchanger
	claims    ClaimsExtractor
	flows     auth.FlowStore
	sinks     Deliverer
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewEnrollmentService builds the service.
func NewEnrollmentService(deps EnrollmentDependencies) *EnrollmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		exchanger: deps.Exchanger,
		claims:    deps.Claims,
		flows:     deps.Flows,
		sinks:     deps.Sinks,
		logger:    logger,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

// Complete handles one callback. The returned Outcome is never nil. The error is
// nil only for SUCCEEDED; a DENIED callback returns an AUTHORIZATION_DENIED error
// without contacting the provider or any sink.
//
// Every enabled sink is attempted even when another fails. If any fails the
// callback is FAILED with SINK_DELIVERY_ERROR and Outcome.Sinks shows which
// sinks did persist the enrollment.
func (s *EnrollmentService) Complete(ctx context.Context, cb Callback) (*Outcome, error) {
	if cb.Code == "" {
		s.logger.Info("authorization denied", zap.String("provider_error", cb.ProviderError))
		s.metrics.RecordCallback(string(domain.CallbackDenied))
		return &Outcome{State: domain.CallbackDenied}, apperrors.NewAuthorizationDenied(cb.ProviderError)
	}

	verifier, err := s.flows.Take(ctx, cb.State)
	if err != nil {
		return s.fail(&Outcome{}, "resolve pending authorization",
			apperrors.NewExchangeFailed(fmt.Errorf("resolve pkce verifier: %w", err)))
	}

	tokens, err := s.exchanger.Exchange(ctx, auth.Grant{
		Code:         cb.Code,
		CodeVerifier: verifier,
		RedirectURL:  cb.RedirectURL,
	})
	if err != nil {
		return s.fail(&Outcome{}, "token exchange", err)
	}

	claims, err := s.claims.Extract(ctx, tokens.AccessToken)
	if err != nil {
		return s.fail(&Outcome{}, "claims extraction", err)
	}

	enrollment := domain.Enrollment{
		ID:           uuid.NewString(),
		Name:         claims.FullName,
		Email:        claims.Email,
		RefreshToken: tokens.RefreshToken,
		EnrolledAt:   s.now().UTC(),
	}
	outcome := &Outcome{
		EnrollmentID: enrollment.ID,
		View:         redact.View(enrollment),
	}
	s.logger.Info("enrollment captured",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("name", outcome.View.Name),
		zap.String("email", outcome.View.Email),
		zap.String("refresh_token", outcome.View.RefreshToken))

	outcome.Sinks = s.sinks.Deliver(ctx, enrollment)
	if failed := outcome.Sinks.Failed(); len(failed) > 0 {
		return s.fail(outcome, "sink delivery",
			apperrors.NewSinkDeliveryError(outcome.Sinks.Err(), outcome.Sinks.Summary()))
	}

	outcome.State = domain.CallbackSucceeded
	s.metrics.RecordCallback(string(domain.CallbackSucceeded))
	s.logger.Info("enrollment completed",
		zap.String("enrollment_id", enrollment.ID),
		zap.Int("sinks_delivered", len(outcome.Sinks.Delivered())))
	return outcome, nil
}

func (s *EnrollmentService) fail(outcome *Outcome, step string, err error) (*Outcome, error) {
	outcome.State = domain.CallbackFailed
	s.metrics.RecordCallback(string(domain.CallbackFailed))
	s.logger.Error("enrollment failed",
		zap.String("step", step),
		zap.String("enrollment_id", outcome.EnrollmentID),
		zap.Error(err))
	return outcome, err
}

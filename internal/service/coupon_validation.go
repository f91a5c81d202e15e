package service

import (
	"context"
	"time"

	"github.com/assistly/billing/internal/domain/coupon"
	"github.com/assistly/billing/internal/domain/fraud"
	"github.com/assistly/billing/internal/domain/redemption"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/publisher"
	"github.com/assistly/billing/internal/sentry"
	"github.com/assistly/billing/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// ValidateCouponRequest is one attempt by a user to apply a coupon code
type ValidateCouponRequest struct {
	Code    string
	UserID  string
	Context coupon.ValidationContext
}

// CouponValidationService runs the validation pipeline against live data
type CouponValidationService interface {
	// ValidateCoupon records the attempt, loads the coupon and the user's history, and runs the pipeline.
	// Rejections are reported in the result. An error is returned only when the checks could not run;
	// the result then carries VALIDATION_ERROR.
	ValidateCoupon(ctx context.Context, req ValidateCouponRequest) (*coupon.ValidationResult, error)
}

type couponValidationService struct {
	ServiceParams
}

func NewCouponValidationService(params ServiceParams) CouponValidationService {
	return &couponValidationService{
		ServiceParams: params,
	}
}

func (s *couponValidationService) ValidateCoupon(ctx context.Context, req ValidateCouponRequest) (*coupon.ValidationResult, error) {
	start := time.Now()
	code := coupon.NormalizeCode(req.Code)

	span, ctx := s.Sentry.StartServiceSpan(ctx, "coupon.validate", map[string]interface{}{
		"coupon_code": code,
		"user_id":     req.UserID,
	})
	defer sentry.FinishSpan(span)

	if req.UserID == "" {
		return nil, ierr.NewError("user id is required").
			WithHint("A user is required to validate a coupon").
			Mark(ierr.ErrValidation)
	}

	now := time.Now().UTC()
	input, err := s.loadInput(ctx, code, req, now)
	if err != nil {
		return s.infrastructureFailure(ctx, code, req.UserID, start, err)
	}

	result := s.CouponEngine.Validate(input)

	s.handleSignals(ctx, result.FraudSignals)
	s.Metrics.ObserveCouponValidation(result.IsValid, result.ErrorCode(), time.Since(start))

	if result.IsValid {
		s.Logger.Infow("coupon validated",
			"coupon_code", code,
			"user_id", req.UserID,
			"discount_amount", result.Discount.DiscountAmount,
		)
	} else {
		s.Logger.Infow("coupon rejected",
			"coupon_code", code,
			"user_id", req.UserID,
			"error_code", result.ErrorCode(),
		)
	}

	return result, nil
}

// loadInput records the attempt and hydrates everything the pipeline reads.
// The attempt is written first so the velocity count includes it.
func (s *couponValidationService) loadInput(
	ctx context.Context,
	code string,
	req ValidateCouponRequest,
	now time.Time,
) (*coupon.ValidationInput, error) {
	attempt := redemption.NewAttempt(req.UserID, code, req.Context.IPAddress, now)
	if err := s.RedemptionRepo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	input := &coupon.ValidationInput{
		UserID:  req.UserID,
		Context: req.Context,
		Now:     now,
	}

	c, err := s.CouponRepo.GetByCode(ctx, code)
	if err != nil {
		if ierr.IsNotFound(err) {
			return input, nil
		}
		return nil, err
	}
	input.Coupon = c

	if err := s.loadHistory(ctx, input, now); err != nil {
		return nil, err
	}
	return input, nil
}

// loadHistory reads the user's subscription tier and redemption and fraud history concurrently.
// The tier always comes from the user's current subscription, never from the caller.
func (s *couponValidationService) loadHistory(ctx context.Context, input *coupon.ValidationInput, now time.Time) error {
	var (
		history coupon.UserHistory
		tier    = types.SubscriptionTierFree
		c       = input.Coupon
		userID  = input.UserID
	)
	windowStart := now.Add(-s.CouponEngine.Config().VelocityWindow)

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		sub, err := s.SubRepo.GetCurrentByUser(ctx, userID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return nil
			}
			return err
		}
		tier = sub.Tier
		return nil
	})
	p.Go(func(ctx context.Context) error {
		n, err := s.RedemptionRepo.CountSuccessfulByCouponAndUser(ctx, c.ID, userID)
		history.SuccessfulRedemptions = n
		return err
	})
	p.Go(func(ctx context.Context) error {
		n, err := s.RedemptionRepo.CountAttemptsSince(ctx, userID, windowStart)
		history.AttemptsInWindow = n
		return err
	})
	p.Go(func(ctx context.Context) error {
		ips, err := s.RedemptionRepo.DistinctIPsByUser(ctx, userID)
		history.DistinctIPs = ips
		return err
	})
	p.Go(func(ctx context.Context) error {
		n, err := s.FraudRepo.CountUnreviewedCritical(ctx, c.ID, userID)
		history.UnreviewedCriticalFlags = n
		return err
	})
	p.Go(func(ctx context.Context) error {
		profile, err := s.UserRepo.GetProfile(ctx, userID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return nil
			}
			return err
		}
		history.Profile = profile
		return nil
	})

	if err := p.Wait(); err != nil {
		return err
	}

	if input.Context.SubscriptionTier != "" && input.Context.SubscriptionTier != tier {
		s.Logger.Debugw("ignoring caller supplied subscription tier",
			"user_id", userID,
			"claimed_tier", input.Context.SubscriptionTier,
			"current_tier", tier,
		)
	}
	input.Context.SubscriptionTier = tier
	input.History = history
	return nil
}

// handleSignals persists and publishes the fraud signals a validation raised.
// Failures are reported but do not change the verdict.
func (s *couponValidationService) handleSignals(ctx context.Context, signals []*fraud.Signal) {
	for _, signal := range signals {
		s.Metrics.ObserveFraudSignal(signal.Type, signal.Severity)

		detection := fraud.NewDetection(signal)
		if err := s.FraudRepo.Create(ctx, detection); err != nil {
			s.Logger.Errorw("failed to record fraud detection",
				"user_id", signal.UserID,
				"detection_type", signal.Type,
				"error", err,
			)
			s.Sentry.CaptureWithTags(ctx, err, map[string]string{
				"operation": "record_fraud_detection",
			})
			continue
		}

		s.Logger.Warnw("fraud signal detected",
			"user_id", signal.UserID,
			"coupon_id", signal.CouponID,
			"detection_type", signal.Type,
			"severity", signal.Severity,
			"flagged", signal.Flagged,
		)

		event := publisher.NewEvent(types.EventFraudSignalDetected, signal.UserID, detection)
		if err := s.EventPublisher.Publish(ctx, event); err != nil {
			s.Logger.Errorw("failed to publish event",
				"event_type", event.Type,
				"key", event.Key,
				"error", err,
			)
		}
	}
}

func (s *couponValidationService) infrastructureFailure(
	ctx context.Context,
	code, userID string,
	start time.Time,
	err error,
) (*coupon.ValidationResult, error) {
	s.Logger.Errorw("coupon validation could not run",
		"coupon_code", code,
		"user_id", userID,
		"error", err,
	)
	s.Sentry.CaptureWithTags(ctx, err, map[string]string{
		"operation":   "validate_coupon",
		"coupon_code": code,
	})

	result := coupon.InfrastructureFailure()
	s.Metrics.ObserveCouponValidation(false, result.ErrorCode(), time.Since(start))

	if !ierr.IsInfrastructure(err) {
		err = ierr.WithError(err).
			WithHint("Coupon validation is temporarily unavailable").
			Mark(ierr.ErrSystem)
	}
	return result, err
}

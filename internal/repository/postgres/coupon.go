package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/assistly/billing/internal/cache"
	domainCoupon "github.com/assistly/billing/internal/domain/coupon"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
	"github.com/assistly/billing/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type couponRepository struct {
	db    *postgres.DB
	log   *logger.Logger
	cache cache.Cache
}

// couponRow maps the coupons table, whose tier list is a postgres TEXT[]
type couponRow struct {
	domainCoupon.Coupon
	Tiers pq.StringArray `db:"tier_eligibility"`
}

func (r couponRow) toDomain() *domainCoupon.Coupon {
	c := r.Coupon
	c.TierEligibility = lo.Map(r.Tiers, func(t string, _ int) types.SubscriptionTier {
		return types.SubscriptionTier(t)
	})
	return &c
}

type ruleRow struct {
	domainCoupon.ValidationRule
	RawParams []byte `db:"params"`
}

// NewCouponRepository returns a repository that caches the static part of a coupon (the record and its
// rules) by code. Usage counters and campaign spend are always read from the database.
func NewCouponRepository(db *postgres.DB, log *logger.Logger, cache cache.Cache) domainCoupon.Repository {
	return &couponRepository{
		db:    db,
		log:   log,
		cache: cache,
	}
}

func (r *couponRepository) Create(ctx context.Context, c *domainCoupon.Coupon) error {
	span := StartRepositorySpan(ctx, "coupon", "create", map[string]interface{}{
		"coupon_id": c.ID,
		"code":      c.Code,
	})
	defer FinishSpan(span)

	if err := c.Validate(); err != nil {
		SetSpanError(span, err)
		return err
	}

	q := r.db.GetQuerier(ctx)

	query := `
		INSERT INTO coupons (
			id,
			code,
			name,
			type,
			discount_type,
			discount_value,
			max_uses,
			max_uses_per_user,
			min_purchase_amount,
			tier_eligibility,
			valid_from,
			valid_until,
			is_active,
			campaign_id,
			created_at,
			updated_at
		) VALUES (
			:id,
			:code,
			:name,
			:type,
			:discount_type,
			:discount_value,
			:max_uses,
			:max_uses_per_user,
			:min_purchase_amount,
			:tier_eligibility,
			:valid_from,
			:valid_until,
			:is_active,
			:campaign_id,
			:created_at,
			:updated_at
		)
	`

	row := couponRow{
		Coupon: *c,
		Tiers: lo.Map(c.TierEligibility, func(t types.SubscriptionTier, _ int) string {
			return string(t)
		}),
	}

	if _, err := q.NamedExecContext(ctx, query, row); err != nil {
		SetSpanError(span, err)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ierr.WithError(err).
				WithHintf("Coupon code %s already exists", c.Code).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create coupon").
			Mark(ierr.ErrDatabase)
	}

	for _, rule := range c.ValidationRules {
		if rule.ID == "" {
			rule.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_VALIDATION_RULE)
		}
		rule.CouponID = c.ID

		params, err := marshalJSONB(rule.Params)
		if err != nil {
			SetSpanError(span, err)
			return ierr.WithError(err).
				WithHint("Validation rule params are not valid JSON").
				Mark(ierr.ErrValidation)
		}

		if _, err := q.ExecContext(ctx,
			`INSERT INTO coupon_validation_rules (id, coupon_id, rule_type, params, is_active) VALUES ($1, $2, $3, $4, $5)`,
			rule.ID, rule.CouponID, rule.RuleType, params, rule.IsActive,
		); err != nil {
			SetSpanError(span, err)
			return ierr.WithError(err).
				WithHint("Failed to create coupon validation rule").
				Mark(ierr.ErrDatabase)
		}
	}

	SetSpanSuccess(span)
	return nil
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*domainCoupon.Coupon, error) {
	span := StartRepositorySpan(ctx, "coupon", "get_by_code", map[string]interface{}{
		"code": code,
	})
	defer FinishSpan(span)

	c := r.GetCache(ctx, code)
	if c == nil {
		r.log.Debugw("getting coupon by code", "code", code)

		var err error
		c, err = r.getStatic(ctx, `SELECT * FROM coupons WHERE code = $1`, code)
		if err != nil {
			SetSpanError(span, err)
			return nil, err
		}
		r.SetCache(ctx, c)
	}

	hydrated, err := r.hydrate(ctx, c)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	SetSpanSuccess(span)
	return hydrated, nil
}

func (r *couponRepository) Get(ctx context.Context, id string) (*domainCoupon.Coupon, error) {
	span := StartRepositorySpan(ctx, "coupon", "get", map[string]interface{}{
		"coupon_id": id,
	})
	defer FinishSpan(span)

	c, err := r.getStatic(ctx, `SELECT * FROM coupons WHERE id = $1`, id)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	hydrated, err := r.hydrate(ctx, c)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	SetSpanSuccess(span)
	return hydrated, nil
}

// getStatic loads the coupon record and its rules
func (r *couponRepository) getStatic(ctx context.Context, query string, key string) (*domainCoupon.Coupon, error) {
	q := r.db.GetQuerier(ctx)

	var row couponRow
	if err := q.GetContext(ctx, &row, query, key); err != nil {
		return nil, wrapGetError(err, "Coupon", key)
	}
	c := row.toDomain()

	var rules []ruleRow
	if err := q.SelectContext(ctx, &rules,
		`SELECT * FROM coupon_validation_rules WHERE coupon_id = $1 ORDER BY id`, c.ID,
	); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to load validation rules for coupon %s", c.Code).
			Mark(ierr.ErrDatabase)
	}

	c.ValidationRules = make([]*domainCoupon.ValidationRule, 0, len(rules))
	for _, rr := range rules {
		params, err := unmarshalJSONB(rr.RawParams)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Validation rule %s has malformed params", rr.ID).
				Mark(ierr.ErrSystem)
		}
		rule := rr.ValidationRule
		rule.Params = params
		c.ValidationRules = append(c.ValidationRules, &rule)
	}

	return c, nil
}

// hydrate returns a copy of c with its live usage counter and campaign attached
func (r *couponRepository) hydrate(ctx context.Context, c *domainCoupon.Coupon) (*domainCoupon.Coupon, error) {
	q := r.db.GetQuerier(ctx)
	out := *c

	var usage domainCoupon.UsageLimits
	err := q.GetContext(ctx, &usage, `SELECT * FROM coupon_usage_limits WHERE coupon_id = $1`, c.ID)
	switch {
	case err == nil:
		out.UsageLimits = &usage
	case errors.Is(err, sql.ErrNoRows):
		out.UsageLimits = nil
	default:
		return nil, ierr.WithError(err).
			WithHintf("Failed to load usage for coupon %s", c.Code).
			Mark(ierr.ErrDatabase)
	}

	out.Campaign = nil
	if c.CampaignID != nil {
		var campaign domainCoupon.Campaign
		if err := q.GetContext(ctx, &campaign, `SELECT * FROM campaigns WHERE id = $1`, *c.CampaignID); err != nil {
			return nil, wrapGetError(err, "Campaign", *c.CampaignID)
		}
		out.Campaign = &campaign
	}

	return &out, nil
}

// IncrementUsage creates the counter when missing and increments it only while it is below maxUses
func (r *couponRepository) IncrementUsage(ctx context.Context, couponID string) (*domainCoupon.UsageLimits, error) {
	span := StartRepositorySpan(ctx, "coupon", "increment_usage", map[string]interface{}{
		"coupon_id": couponID,
	})
	defer FinishSpan(span)

	q := r.db.GetQuerier(ctx)
	now := time.Now().UTC()

	if _, err := q.ExecContext(ctx,
		`INSERT INTO coupon_usage_limits (coupon_id, total_uses, updated_at) VALUES ($1, 0, $2) ON CONFLICT (coupon_id) DO NOTHING`,
		couponID, now,
	); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to initialise coupon usage").
			Mark(ierr.ErrDatabase)
	}

	// the row lock taken by UPDATE re-checks the limit against the committed count
	query := `
		UPDATE coupon_usage_limits u
		SET total_uses = u.total_uses + 1, updated_at = $2
		FROM coupons c
		WHERE u.coupon_id = c.id
			AND u.coupon_id = $1
			AND (c.max_uses IS NULL OR u.total_uses < c.max_uses)
		RETURNING u.coupon_id, u.total_uses, u.updated_at
	`

	var usage domainCoupon.UsageLimits
	if err := q.GetContext(ctx, &usage, query, couponID, now); err != nil {
		SetSpanError(span, err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewErrorf("coupon %s reached its usage limit", couponID).
				WithHint("This coupon has reached its usage limit").
				WithReportableDetails(map[string]any{
					"coupon_id": couponID,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to update coupon usage").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return &usage, nil
}

func (r *couponRepository) AddCampaignSpend(ctx context.Context, campaignID string, amount decimal.Decimal) error {
	span := StartRepositorySpan(ctx, "coupon", "add_campaign_spend", map[string]interface{}{
		"campaign_id": campaignID,
		"amount":      amount.String(),
	})
	defer FinishSpan(span)

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`UPDATE campaigns SET total_spent_usd = total_spent_usd + $2, updated_at = $3 WHERE id = $1`,
		campaignID, amount, time.Now().UTC(),
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to update campaign spend").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err := ierr.NewErrorf("campaign %s not found", campaignID).
			WithHintf("Campaign %s was not found", campaignID).
			Mark(ierr.ErrNotFound)
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	return nil
}

func (r *couponRepository) SetCache(ctx context.Context, c *domainCoupon.Coupon) {
	span := cache.StartCacheSpan(ctx, "coupon", "set", map[string]interface{}{
		"code": c.Code,
	})
	defer cache.FinishSpan(span)

	cacheKey := cache.GenerateKey(cache.PrefixCoupon, c.Code)
	r.cache.Set(ctx, cacheKey, c, 0)
}

func (r *couponRepository) GetCache(ctx context.Context, code string) *domainCoupon.Coupon {
	span := cache.StartCacheSpan(ctx, "coupon", "get", map[string]interface{}{
		"code": code,
	})
	defer cache.FinishSpan(span)

	cacheKey := cache.GenerateKey(cache.PrefixCoupon, code)
	if value, found := r.cache.Get(ctx, cacheKey); found {
		r.log.Debugw("cache hit", "key", cacheKey)
		return value.(*domainCoupon.Coupon)
	}
	r.log.Debugw("cache miss", "key", cacheKey)
	return nil
}

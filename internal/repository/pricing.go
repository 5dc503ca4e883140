package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"geoconnect/internal/models"
)

// ActivePricingRules loads a tenant's active rules ordered by priority
// ascending, then name, which is the order the fare engine evaluates in.
func (q *queries) ActivePricingRules(ctx context.Context, tenantID uuid.UUID) ([]models.PricingRule, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, tenant_id, provider_id, name, mode, type, currency, config, priority, active
		FROM pricing_rules
		WHERE tenant_id = $1 AND active = TRUE
		ORDER BY priority ASC, name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []models.PricingRule
	for rows.Next() {
		var rule models.PricingRule
		var config []byte
		err := rows.Scan(
			&rule.ID,
			&rule.TenantID,
			&rule.ProviderID,
			&rule.Name,
			&rule.Mode,
			&rule.Type,
			&rule.Currency,
			&config,
			&rule.Priority,
			&rule.Active,
		)
		if err != nil {
			return nil, err
		}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &rule.Config); err != nil {
				return nil, fmt.Errorf("failed to decode config of rule %s: %w", rule.ID, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

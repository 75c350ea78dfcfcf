package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"coindex/pkg/models"
)

// LoadRules reads the priority-rule seed file. Rules document why a
// variant carries its score; they are stored for auditability only.
func LoadRules(path string) ([]models.PriorityRule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read priority rules: %w", err)
	}

	var raw []struct {
		CoinType             string `yaml:"coin_type"`
		YearRange            string `yaml:"year_range"`
		Condition            string `yaml:"condition"`
		PriorityVariantLabel string `yaml:"priority_variant_label"`
		Score                int    `yaml:"score"`
		Rationale            string `yaml:"rationale"`
	}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse priority rules: %w", err)
	}

	rules := make([]models.PriorityRule, 0, len(raw))
	for i, r := range raw {
		if r.CoinType == "" || r.PriorityVariantLabel == "" {
			return nil, fmt.Errorf("priority rule %d: coin_type and priority_variant_label are required", i)
		}
		if r.Score < 0 || r.Score > 100 {
			return nil, fmt.Errorf("priority rule %d: score %d out of 0-100", i, r.Score)
		}
		rules = append(rules, models.PriorityRule{
			CoinType:             r.CoinType,
			YearRange:            r.YearRange,
			Condition:            r.Condition,
			PriorityVariantLabel: r.PriorityVariantLabel,
			Score:                r.Score,
			Rationale:            r.Rationale,
		})
	}
	return rules, nil
}

type RuleRepo struct {
	DB *sql.DB
}

func NewRuleRepo(db *sql.DB) *RuleRepo {
	return &RuleRepo{DB: db}
}

// Upsert writes one rule, keyed by (coin_type, year_range, label).
func (r *RuleRepo) Upsert(ctx context.Context, rule models.PriorityRule) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO priority_rules (coin_type, year_range, condition, priority_variant_label, score, rationale)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(coin_type, year_range, priority_variant_label) DO UPDATE SET
			condition = excluded.condition,
			score = excluded.score,
			rationale = excluded.rationale
	`, rule.CoinType, rule.YearRange, nullStr(rule.Condition),
		rule.PriorityVariantLabel, rule.Score, nullStr(rule.Rationale))
	if err != nil {
		return fmt.Errorf("upsert rule (%s,%s,%s): %w", rule.CoinType, rule.YearRange, rule.PriorityVariantLabel, err)
	}
	return nil
}

// ForType lists the rules recorded for one coin type.
func (r *RuleRepo) ForType(ctx context.Context, coinType string) ([]models.PriorityRule, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT coin_type, year_range, condition, priority_variant_label, score, rationale
		FROM priority_rules
		WHERE coin_type = ?
		ORDER BY year_range, priority_variant_label
	`, coinType)
	if err != nil {
		return nil, fmt.Errorf("rules for %s: %w", coinType, err)
	}
	defer rows.Close()

	var out []models.PriorityRule
	for rows.Next() {
		var (
			rule      models.PriorityRule
			condition sql.NullString
			rationale sql.NullString
		)
		if err := rows.Scan(&rule.CoinType, &rule.YearRange, &condition,
			&rule.PriorityVariantLabel, &rule.Score, &rationale); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Condition = condition.String
		rule.Rationale = rationale.String
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

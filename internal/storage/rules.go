package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

const ruleColumns = `id, user_id, patterns, match_type, category, subcategory, vendor,
	priority, is_active, use_count, created_at, updated_at`

// CreateRule creates a new classification rule.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	patterns, err := json.Marshal(rule.Patterns)
	if err != nil {
		return fmt.Errorf("failed to marshal rule patterns: %w", err)
	}

	query := `
		INSERT INTO rules (user_id, patterns, match_type, category, subcategory, vendor, priority, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.UserID, string(patterns), string(rule.MatchType),
		rule.Category, rule.Subcategory, rule.Vendor,
		rule.Priority, rule.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule id: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt

	return nil
}

// GetRule retrieves a rule by id.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM rules WHERE id = ?", ruleColumns)

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetActiveRules retrieves a user's active rules ordered by descending
// priority. The classification engine depends on this ordering; ties are
// broken by id for a stable result.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, userID, true)
}

// GetAllRules retrieves all of a user's rules, active or not.
func (s *SQLiteStorage) GetAllRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, userID, false)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, userID string, activeOnly bool) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM rules WHERE user_id = ?", ruleColumns)
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY priority DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRuleRow(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	return rules, nil
}

// UpdateRule updates an existing rule.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	patterns, err := json.Marshal(rule.Patterns)
	if err != nil {
		return fmt.Errorf("failed to marshal rule patterns: %w", err)
	}

	query := `
		UPDATE rules
		SET patterns = ?, match_type = ?, category = ?, subcategory = ?, vendor = ?,
			priority = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(patterns), string(rule.MatchType), rule.Category, rule.Subcategory,
		rule.Vendor, rule.Priority, rule.IsActive, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", rule.ID, common.ErrNotFound)
	}

	return nil
}

// DeleteRule removes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// IncrementRuleUseCount bumps a rule's use counter after it classifies a
// transaction.
func (s *SQLiteStorage) IncrementRuleUseCount(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE rules SET use_count = use_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to increment rule use count: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	return scanRuleRow(row)
}

func scanRuleRow(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var patterns string
	var subcategory, vendor sql.NullString

	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&patterns,
		&rule.MatchType,
		&rule.Category,
		&subcategory,
		&vendor,
		&rule.Priority,
		&rule.IsActive,
		&rule.UseCount,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(patterns), &rule.Patterns); err != nil {
		return nil, fmt.Errorf("corrupt patterns for rule %d: %w", rule.ID, err)
	}
	rule.Subcategory = subcategory.String
	rule.Vendor = vendor.String

	return &rule, nil
}

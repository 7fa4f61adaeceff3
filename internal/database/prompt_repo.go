package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vidsync/vidsync/internal/models"
)

var ErrPromptNotFound = errors.New("prompt not found")

type PromptRepo struct {
	db *DB
}

func NewPromptRepo(db *DB) *PromptRepo {
	return &PromptRepo{db: db}
}

var defaultPrompts = []models.QuickPrompt{
	{
		Name: "视频摘要",
		PromptText: "请分析这个视频的主要内容，包括：1. 视频主题和目的 2. 关键场景和动作 " +
			"3. 重要对话或文字信息 4. 整体风格和特点",
		Description: "生成视频的详细摘要分析",
		IsDefault:   true,
	},
	{
		Name: "内容分类",
		PromptText: "请对这个视频进行分类，包括：1. 内容类型（教育、娱乐、新闻等） 2. 目标受众 " +
			"3. 主要话题标签 4. 适用场景",
		Description: "对视频内容进行分类和标签化",
		IsDefault:   true,
	},
	{
		Name: "关键信息提取",
		PromptText: "请提取视频中的关键信息：1. 重要人物和角色 2. 关键时间点和事件 " +
			"3. 重要数据和统计信息 4. 可操作的建议或指导",
		Description: "提取视频中的核心信息点",
		IsDefault:   true,
	},
	{
		Name: "情感分析",
		PromptText: "请分析视频的情感色彩：1. 整体情感倾向（积极、消极、中性） 2. 情感变化过程 " +
			"3. 情感表达方式 4. 观众可能的情感反应",
		Description: "分析视频的情感表达和影响",
		IsDefault:   true,
	},
}

// SeedDefaults inserts the built-in prompt templates when the table is empty.
func (r *PromptRepo) SeedDefaults(ctx context.Context) error {
	var count int
	if err := r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM quick_prompts`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count prompts: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, p := range defaultPrompts {
		_, err := r.db.conn.ExecContext(ctx, `
			INSERT INTO quick_prompts (name, prompt_text, description, is_default)
			VALUES (?, ?, ?, ?)`,
			p.Name, p.PromptText, p.Description, p.IsDefault)
		if err != nil {
			return fmt.Errorf("failed to seed prompt %q: %w", p.Name, err)
		}
	}
	return nil
}

func (r *PromptRepo) List(ctx context.Context) ([]*models.QuickPrompt, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, name, prompt_text, description, is_default, created_at, updated_at
		FROM quick_prompts
		ORDER BY is_default DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*models.QuickPrompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	return prompts, rows.Err()
}

func (r *PromptRepo) GetByID(ctx context.Context, id int64) (*models.QuickPrompt, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, name, prompt_text, description, is_default, created_at, updated_at
		FROM quick_prompts WHERE id = ?`, id)

	prompt, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return prompt, nil
}

func (r *PromptRepo) Add(ctx context.Context, name, promptText, description string) (int64, error) {
	result, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO quick_prompts (name, prompt_text, description, is_default)
		VALUES (?, ?, ?, 0)`,
		name, promptText, description)
	if err != nil {
		return 0, fmt.Errorf("failed to add prompt: %w", err)
	}
	return result.LastInsertId()
}

func (r *PromptRepo) Update(ctx context.Context, id int64, name, promptText, description string) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE quick_prompts
		SET name = ?, prompt_text = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		name, promptText, description, id)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	if affected == 0 {
		return ErrPromptNotFound
	}
	return nil
}

func (r *PromptRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM quick_prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	if affected == 0 {
		return ErrPromptNotFound
	}
	return nil
}

func scanPrompt(row rowScanner) (*models.QuickPrompt, error) {
	prompt := &models.QuickPrompt{}
	var description sql.NullString

	err := row.Scan(
		&prompt.ID,
		&prompt.Name,
		&prompt.PromptText,
		&description,
		&prompt.IsDefault,
		&prompt.CreatedAt,
		&prompt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	prompt.Description = description.String
	return prompt, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"papanskor/internal/scoreboard/model"
	"papanskor/pkg/logger"
)

var (
	ErrNotFound = errors.New("scoreboard not found")
	ErrConflict = errors.New("scoreboard already exists")
)

const uniqueViolation = "23505"

const columns = `id, owner_id, title, subtitle, side_a_label, side_b_label, side_a_score, side_b_score,
	style, title_visible, center_text_color, logo_url, document_type, side_a_icon, side_b_icon,
	layout, version, last_modified_at, view_token, control_token`

// columnOf maps an editable field to its column.
var columnOf = map[model.Field]string{
	model.FieldTitle:           "title",
	model.FieldSubtitle:        "subtitle",
	model.FieldSideALabel:      "side_a_label",
	model.FieldSideBLabel:      "side_b_label",
	model.FieldSideAScore:      "side_a_score",
	model.FieldSideBScore:      "side_b_score",
	model.FieldStyle:           "style",
	model.FieldTitleVisible:    "title_visible",
	model.FieldCenterTextColor: "center_text_color",
	model.FieldLogoURL:         "logo_url",
	model.FieldDocumentType:    "document_type",
	model.FieldSideAIcon:       "side_a_icon",
	model.FieldSideBIcon:       "side_b_icon",
	model.FieldLayout:          "layout",
}

type ScoreboardRepository struct {
	DB *sql.DB
}

func NewScoreboardRepository(db *sql.DB) *ScoreboardRepository {
	return &ScoreboardRepository{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScoreboard(row scanner) (*model.Scoreboard, error) {
	var sb model.Scoreboard
	var layout []byte
	err := row.Scan(&sb.ID, &sb.OwnerID, &sb.Title, &sb.Subtitle, &sb.SideALabel, &sb.SideBLabel,
		&sb.SideAScore, &sb.SideBScore, &sb.Style, &sb.TitleVisible, &sb.CenterTextColor, &sb.LogoURL,
		&sb.DocumentType, &sb.SideAIcon, &sb.SideBIcon, &layout, &sb.Version, &sb.LastModifiedAt,
		&sb.ViewToken, &sb.ControlToken)
	if err != nil {
		return nil, err
	}
	sb.DocumentType = model.NormalizeDocumentType(sb.DocumentType)
	if sb.Layout, err = model.ParseLayout(sb.DocumentType, layout); err != nil {
		logger.Sugar.Warnf("Scoreboard %s has an unreadable layout, using defaults: %v", sb.ID, err)
	}
	return &sb, nil
}

// Create inserts a new row; version and last_modified_at come back from the database.
func (r *ScoreboardRepository) Create(ctx context.Context, sb *model.Scoreboard) error {
	layout, err := json.Marshal(sb.Layout)
	if err != nil {
		return err
	}
	err = r.DB.QueryRowContext(ctx, `
		INSERT INTO scoreboards (id, owner_id, title, side_a_label, side_b_label, title_visible,
			document_type, layout, view_token, control_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, last_modified_at`,
		sb.ID, sb.OwnerID, sb.Title, sb.SideALabel, sb.SideBLabel, sb.TitleVisible,
		sb.DocumentType, layout, sb.ViewToken, sb.ControlToken,
	).Scan(&sb.Version, &sb.LastModifiedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrConflict
		}
		logger.Sugar.Errorf("Failed to create scoreboard: %v", err)
	}
	return err
}

func (r *ScoreboardRepository) Get(ctx context.Context, id string) (*model.Scoreboard, error) {
	sb, err := scanScoreboard(r.DB.QueryRowContext(ctx, "SELECT "+columns+" FROM scoreboards WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get scoreboard %s: %v", id, err)
	}
	return sb, err
}

// ListByOwner returns the owner's scoreboards, most recently modified first.
func (r *ScoreboardRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Scoreboard, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+columns+" FROM scoreboards WHERE owner_id = $1 ORDER BY last_modified_at DESC", ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list scoreboards for user %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	out := []model.Scoreboard{}
	for rows.Next() {
		sb, err := scanScoreboard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sb)
	}
	return out, rows.Err()
}

// GetByShareToken resolves a view or control token.
func (r *ScoreboardRepository) GetByShareToken(ctx context.Context, token string) (*model.ShareResolution, error) {
	var res model.ShareResolution
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, CASE WHEN control_token = $1 THEN 'control' ELSE 'view' END
		FROM scoreboards WHERE view_token = $1 OR control_token = $1`, token,
	).Scan(&res.DocumentID, &res.Access)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to resolve share token: %v", err)
		return nil, err
	}
	return &res, nil
}

// Update writes only the columns present in p, bumps the version and returns the full row.
// A non-empty ownerID restricts the update to that owner's row.
func (r *ScoreboardRepository) Update(ctx context.Context, id, ownerID string, p model.Patch) (*model.Scoreboard, error) {
	sets, args, err := assignments(p)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "version = version + 1", "last_modified_at = NOW()")

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if ownerID != "" {
		args = append(args, ownerID)
		where += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}

	query := "UPDATE scoreboards SET " + strings.Join(sets, ", ") + " WHERE " + where + " RETURNING " + columns
	sb, err := scanScoreboard(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update scoreboard %s: %v", id, err)
	}
	return sb, err
}

func assignments(p model.Patch) ([]string, []any, error) {
	var sets []string
	var args []any
	for _, f := range p.Fields() {
		v, err := columnValue(p, f)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", columnOf[f], len(args)))
	}
	return sets, args, nil
}

func columnValue(p model.Patch, f model.Field) (any, error) {
	switch f {
	case model.FieldTitle:
		return *p.Title, nil
	case model.FieldSubtitle:
		return *p.Subtitle, nil
	case model.FieldSideALabel:
		return *p.SideALabel, nil
	case model.FieldSideBLabel:
		return *p.SideBLabel, nil
	case model.FieldSideAScore:
		return model.ClampScore(*p.SideAScore), nil
	case model.FieldSideBScore:
		return model.ClampScore(*p.SideBScore), nil
	case model.FieldStyle:
		return *p.Style, nil
	case model.FieldTitleVisible:
		return *p.TitleVisible, nil
	case model.FieldCenterTextColor:
		return *p.CenterTextColor, nil
	case model.FieldLogoURL:
		return *p.LogoURL, nil
	case model.FieldDocumentType:
		return model.NormalizeDocumentType(*p.DocumentType), nil
	case model.FieldSideAIcon:
		return *p.SideAIcon, nil
	case model.FieldSideBIcon:
		return *p.SideBIcon, nil
	case model.FieldLayout:
		b, err := json.Marshal(p.Layout)
		if err != nil {
			return nil, fmt.Errorf("encode layout: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown field %q", f)
}

// Delete removes the row and returns the asset URLs it referenced.
func (r *ScoreboardRepository) Delete(ctx context.Context, id, ownerID string) ([]string, error) {
	var logo, iconA, iconB string
	err := r.DB.QueryRowContext(ctx, `
		DELETE FROM scoreboards WHERE id = $1 AND owner_id = $2
		RETURNING logo_url, side_a_icon, side_b_icon`, id, ownerID,
	).Scan(&logo, &iconA, &iconB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to delete scoreboard %s: %v", id, err)
		return nil, err
	}

	var assets []string
	for _, u := range []string{logo, iconA, iconB} {
		if u != "" {
			assets = append(assets, u)
		}
	}
	return assets, nil
}

// Notify announces a committed version to every instance listening on channel.
func (r *ScoreboardRepository) Notify(ctx context.Context, channel string, n model.ChangeNotice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, string(payload))
	if err != nil {
		logger.Sugar.Errorf("Failed to notify %s for scoreboard %s: %v", channel, n.ID, err)
	}
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"papanskor/internal/permission"
	"papanskor/internal/scoreboard/model"
	"papanskor/internal/scoreboard/repository"
	"papanskor/pkg/logger"
	"papanskor/pkg/metrics"
)

var (
	ErrNotFound   = repository.ErrNotFound
	ErrForbidden  = errors.New("forbidden")
	ErrEmptyPatch = errors.New("nothing to update")
	// ErrShareMismatch means the share token belongs to another scoreboard.
	ErrShareMismatch = errors.New("share token does not match scoreboard")
)

type Repository interface {
	Create(ctx context.Context, sb *model.Scoreboard) error
	Get(ctx context.Context, id string) (*model.Scoreboard, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Scoreboard, error)
	GetByShareToken(ctx context.Context, token string) (*model.ShareResolution, error)
	Update(ctx context.Context, id, ownerID string, p model.Patch) (*model.Scoreboard, error)
	Delete(ctx context.Context, id, ownerID string) ([]string, error)
	Notify(ctx context.Context, channel string, n model.ChangeNotice) error
}

type ShareCache interface {
	Get(ctx context.Context, token string) (*model.ShareResolution, error)
	Set(ctx context.Context, token string, res model.ShareResolution) error
	Invalidate(ctx context.Context, tokens ...string) error
}

// Feed fans committed rows out to live subscribers on this instance.
type Feed interface {
	Publish(row *model.Scoreboard)
	RemoveDocument(docID string)
}

// Assets releases uploaded files referenced by a deleted scoreboard.
type Assets interface {
	Release(ctx context.Context, assetURL string) error
}

type ScoreboardService struct {
	Repo   Repository
	Cache  ShareCache // optional
	Feed   Feed
	Assets Assets // optional
	// Channel is the NOTIFY channel other instances listen on. Empty disables the relay.
	Channel string
}

func NewScoreboardService(repo Repository, feed Feed) *ScoreboardService {
	return &ScoreboardService{Repo: repo, Feed: feed}
}

// View is a row as seen by one caller.
type View struct {
	*model.Scoreboard
	Access    string `json:"access"`
	CanEdit   bool   `json:"canEdit"`
	CanManage bool   `json:"canManage"`
}

func (s *ScoreboardService) Create(ctx context.Context, caller permission.Caller, req model.CreateScoreboardRequest) (*model.Scoreboard, error) {
	docType := model.NormalizeDocumentType(req.DocumentType)
	gate := permission.Request{
		Caller:   caller,
		OwnerID:  caller.UserID,
		Required: permission.RequiredTier(docType),
		Access:   permission.AccessDirect,
	}
	if err := permission.Denial(gate); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled Scoreboard"
	}
	sb := &model.Scoreboard{
		ID:           uuid.NewString(),
		OwnerID:      caller.UserID,
		Title:        title,
		SideALabel:   "Home",
		SideBLabel:   "Away",
		TitleVisible: true,
		DocumentType: docType,
		Layout:       model.DefaultLayout(docType),
		ViewToken:    newToken(),
		ControlToken: newToken(),
	}
	if err := s.Repo.Create(ctx, sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// Get returns the row with the caller's capabilities. Reading needs no sign-in; tokens are
// only disclosed to the owner.
func (s *ScoreboardService) Get(ctx context.Context, caller permission.Caller, docID, shareToken string) (*View, error) {
	sb, gate, err := s.open(ctx, caller, docID, shareToken)
	if err != nil {
		return nil, err
	}
	v := &View{
		Scoreboard: sb,
		Access:     gate.Access.String(),
		CanEdit:    permission.CanEdit(gate),
		CanManage:  permission.CanManage(gate),
	}
	if !v.CanManage {
		sb.ViewToken, sb.ControlToken = "", ""
	}
	return v, nil
}

// Open satisfies the change feed's access check: any caller that can resolve the row may watch it.
func (s *ScoreboardService) Open(ctx context.Context, caller permission.Caller, docID, shareToken string) (*model.Scoreboard, error) {
	v, err := s.Get(ctx, caller, docID, shareToken)
	if err != nil {
		return nil, err
	}
	return v.Scoreboard, nil
}

func (s *ScoreboardService) List(ctx context.Context, caller permission.Caller) ([]model.Scoreboard, error) {
	if !caller.Authenticated || caller.UserID == "" {
		return nil, permission.ErrSignInRequired
	}
	return s.Repo.ListByOwner(ctx, caller.UserID)
}

// Update applies a partial write after the permission gate and fans the committed row out.
func (s *ScoreboardService) Update(ctx context.Context, caller permission.Caller, docID, shareToken string, p model.Patch) (*model.Scoreboard, error) {
	p.ID, p.Version, p.LastModifiedAt = nil, nil, nil
	if p.IsEmpty() {
		return nil, ErrEmptyPatch
	}

	sb, gate, err := s.open(ctx, caller, docID, shareToken)
	if err != nil {
		return nil, err
	}
	if p.DocumentType != nil {
		gate.Required = max(gate.Required, permission.RequiredTier(*p.DocumentType))
	}
	if err := permission.Denial(gate); err != nil {
		logger.Sugar.Warnf("Permission denied: user %q (%s) tried to edit scoreboard %s", caller.UserID, gate.Access, docID)
		return nil, err
	}
	for _, f := range p.Fields() {
		if !permission.CanEditField(gate.Access, f) {
			logger.Sugar.Warnf("Permission denied: %s link tried to change %s of scoreboard %s", gate.Access, f, sb.ID)
			return nil, fmt.Errorf("%w: %s cannot be changed through a %s link", permission.ErrReadOnly, f, gate.Access)
		}
	}

	ownerScope := ""
	if gate.Access == permission.AccessDirect {
		ownerScope = sb.OwnerID
	}
	row, err := s.Repo.Update(ctx, docID, ownerScope, p)
	if err != nil {
		return nil, err
	}
	metrics.RowUpdatesTotal.WithLabelValues(gate.Access.String()).Inc()

	s.Feed.Publish(row)
	if s.Channel != "" {
		if err := s.Repo.Notify(ctx, s.Channel, model.ChangeNotice{ID: row.ID, Version: row.Version}); err != nil {
			logger.Sugar.Warnf("Failed to announce version %d of scoreboard %s: %v", row.Version, row.ID, err)
		}
	}
	return row, nil
}

// Delete removes an owner's scoreboard. Asset cleanup is best effort and never fails the delete.
func (s *ScoreboardService) Delete(ctx context.Context, caller permission.Caller, docID string) error {
	sb, err := s.Repo.Get(ctx, docID)
	if err != nil {
		return err
	}
	gate := permission.Request{Caller: caller, OwnerID: sb.OwnerID, Access: permission.AccessDirect}
	if !permission.CanManage(gate) {
		return ErrForbidden
	}

	assets, err := s.Repo.Delete(ctx, docID, caller.UserID)
	if err != nil {
		return err
	}
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, sb.ViewToken, sb.ControlToken); err != nil {
			logger.Sugar.Warnf("Failed to invalidate share tokens of %s: %v", docID, err)
		}
	}
	if s.Assets != nil {
		for _, u := range assets {
			if err := s.Assets.Release(ctx, u); err != nil {
				metrics.AssetCleanupFailures.Inc()
				logger.Sugar.Warnf("Failed to release asset %s of scoreboard %s: %v", u, docID, err)
			}
		}
	}
	s.Feed.RemoveDocument(docID)
	return nil
}

// ResolveShare maps a share token to its scoreboard and access level.
func (s *ScoreboardService) ResolveShare(ctx context.Context, token string) (*model.ShareResolution, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	if s.Cache != nil {
		if res, err := s.Cache.Get(ctx, token); err != nil {
			logger.Sugar.Warnf("Share cache read failed: %v", err)
		} else if res != nil {
			return res, nil
		}
	}
	res, err := s.Repo.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, token, *res); err != nil {
			logger.Sugar.Warnf("Share cache write failed: %v", err)
		}
	}
	return res, nil
}

// open loads the row and builds the gate request for the way the caller reached it.
func (s *ScoreboardService) open(ctx context.Context, caller permission.Caller, docID, shareToken string) (*model.Scoreboard, permission.Request, error) {
	access := permission.AccessDirect
	if shareToken != "" {
		res, err := s.ResolveShare(ctx, shareToken)
		if err != nil {
			return nil, permission.Request{}, err
		}
		if docID == "" {
			docID = res.DocumentID
		} else if docID != res.DocumentID {
			return nil, permission.Request{}, ErrShareMismatch
		}
		access = permission.AccessView
		if res.Access == model.ShareControl {
			access = permission.AccessControl
		}
	}
	if docID == "" {
		return nil, permission.Request{}, fmt.Errorf("%w: missing id", ErrNotFound)
	}

	sb, err := s.Repo.Get(ctx, docID)
	if err != nil {
		return nil, permission.Request{}, err
	}
	return sb, permission.Request{
		Caller:   caller,
		OwnerID:  sb.OwnerID,
		Required: permission.RequiredTier(sb.DocumentType),
		Access:   access,
	}, nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

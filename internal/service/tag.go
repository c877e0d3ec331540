package service

import (
	"context"
	"fmt"

	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/audit"
	"github.com/flourisha/brain/internal/domain/okr"
	"github.com/flourisha/brain/internal/port/messagequeue"
)

// TagService manages personal and workspace tags and their assignment to key results.
type TagService struct {
	Deps
}

// NewTagService creates a TagService.
func NewTagService(deps Deps) *TagService {
	return &TagService{Deps: deps}
}

// Create adds a tag in the requested scope. Names are unique per user and per workspace;
// a duplicate yields domain.ErrConflict.
func (s *TagService) Create(ctx context.Context, c access.Claims, req okr.CreateTagRequest) (*okr.Tag, error) {
	if err := requireClaims(c); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !access.CanCreateTag(req.TagScope, c) {
		return nil, fmt.Errorf("create tag %q: %w", req.Name, domain.ErrForbidden)
	}
	if err := s.requireTenant(ctx, c.TenantID); err != nil {
		return nil, err
	}

	t := &okr.Tag{
		UserID:      req.UserID,
		WorkspaceID: req.WorkspaceID,
		TenantID:    c.TenantID,
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	}
	if err := s.Store.CreateTag(ctx, t); err != nil {
		return nil, err
	}
	s.audit(ctx, c, audit.ActionCreate, "okr_tag", t.ID, nil)
	return t, nil
}

// List returns the tags of scope the caller may use. An empty scope lists the caller's
// personal tags.
func (s *TagService) List(ctx context.Context, c access.Claims, scope okr.TagScope) ([]okr.Tag, error) {
	if scope == (okr.TagScope{}) {
		scope.UserID = c.Subject
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.Store.ListTags(ctx, scope)
	if err != nil {
		return nil, err
	}
	return access.Filter(rows, c, access.CanUseTag), nil
}

// Assign links tagID to the key result okrID. Assigning an existing pair is a no-op;
// the returned bool reports whether a link was created.
func (s *TagService) Assign(ctx context.Context, c access.Claims, okrID, tagID string) (bool, error) {
	kr, t, err := s.authorizeAssignment(ctx, c, okrID, tagID)
	if err != nil {
		return false, err
	}
	inserted, err := s.Store.AssignTag(ctx, kr.ID, t.ID)
	if err != nil {
		return false, err
	}
	if inserted {
		s.Metrics.Count(ctx, cfotel.TagAssignments, kr.TenantID, 1)
		s.audit(ctx, c, audit.ActionCreate, "okr_tag_assignment", kr.ID+"/"+t.ID, nil)
		s.publishTagged(ctx, kr, t.ID, true)
	}
	return inserted, nil
}

// Unassign removes the link between okrID and tagID.
func (s *TagService) Unassign(ctx context.Context, c access.Claims, okrID, tagID string) error {
	kr, t, err := s.authorizeAssignment(ctx, c, okrID, tagID)
	if err != nil {
		return err
	}
	if err := s.Store.UnassignTag(ctx, kr.ID, t.ID); err != nil {
		return err
	}
	s.audit(ctx, c, audit.ActionDelete, "okr_tag_assignment", kr.ID+"/"+t.ID, nil)
	s.publishTagged(ctx, kr, t.ID, false)
	return nil
}

// ForKeyResult returns the tags assigned to a key result; visible iff the key result is.
func (s *TagService) ForKeyResult(ctx context.Context, c access.Claims, okrID string) ([]okr.Tag, error) {
	kr, err := s.Store.GetKeyResult(ctx, okrID)
	if err != nil {
		return nil, err
	}
	if !access.CanReadTagAssignment(kr, c) {
		return []okr.Tag{}, nil
	}
	return s.Store.ListTagsForKeyResult(ctx, okrID)
}

func (s *TagService) authorizeAssignment(ctx context.Context, c access.Claims, okrID, tagID string) (*okr.KeyResult, *okr.Tag, error) {
	if err := requireClaims(c); err != nil {
		return nil, nil, err
	}
	kr, err := s.Store.GetKeyResult(ctx, okrID)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanReadKeyResult(kr, c) {
		return nil, nil, fmt.Errorf("key result %s: %w", okrID, domain.ErrNotFound)
	}
	t, err := s.Store.GetTag(ctx, tagID)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanWriteTagAssignment(kr, t, c) {
		return nil, nil, fmt.Errorf("tag %s on key result %s: %w", tagID, okrID, domain.ErrForbidden)
	}
	return kr, t, nil
}

func (s *TagService) publishTagged(ctx context.Context, kr *okr.KeyResult, tagID string, assigned bool) {
	s.Events.Publish(ctx, messagequeue.SubjectOKRTagged, kr.TenantID, messagequeue.OKRTaggedPayload{
		Audience:    keyResultAudience(kr),
		KeyResultID: kr.ID,
		TagID:       tagID,
		Assigned:    assigned,
	})
}
